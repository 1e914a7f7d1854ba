// Package gbdt is a gradient-boosted decision tree binary classifier trained
// on log-loss. Besides inference it exposes the tree structure needed for
// exact per-feature attributions (see Contributions).
package gbdt

import (
	"fmt"
	"math"
)

// Node is one node of a regression tree. Leaves have Left == Right == -1.
// A sample goes left when x[Feature] < Threshold.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Cover     float64 `json:"cover"`
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a flat node list; index 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Model is a trained ensemble together with the ordered feature names it
// was fit on. Leaf values already include the learning rate.
type Model struct {
	FeatureNames []string `json:"feature_names"`
	BaseMargin   float64  `json:"base_margin"`
	Params       Params   `json:"params"`
	Trees        []Tree   `json:"trees"`
}

// leaf returns the index of the leaf x falls into.
func (t *Tree) leaf(x []float64) int {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return i
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Predict returns the leaf value x falls into.
func (t *Tree) Predict(x []float64) float64 {
	return t.Nodes[t.leaf(x)].Value
}

// ExpectedValue is the cover-weighted mean leaf value, i.e. the tree's
// output averaged over the training distribution.
func (t *Tree) ExpectedValue() float64 {
	var walk func(i int) float64
	walk = func(i int) float64 {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
		return (walk(n.Left)*l.Cover + walk(n.Right)*r.Cover) / n.Cover
	}
	return walk(0)
}

// Margin is the raw log-odds output for x.
func (m *Model) Margin(x []float64) float64 {
	out := m.BaseMargin
	for i := range m.Trees {
		out += m.Trees[i].Predict(x)
	}
	return out
}

// PredictProba is the predicted probability of the positive class.
func (m *Model) PredictProba(x []float64) float64 {
	return sigmoid(m.Margin(x))
}

// ExpectedValue is the model's baseline margin over the training data.
func (m *Model) ExpectedValue() float64 {
	out := m.BaseMargin
	for i := range m.Trees {
		out += m.Trees[i].ExpectedValue()
	}
	return out
}

// Validate checks structural integrity, typically after decoding an
// artifact: child indices in range, features in range, positive cover on
// internal nodes.
func (m *Model) Validate() error {
	if len(m.FeatureNames) == 0 {
		return fmt.Errorf("model has no feature names")
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("model has no trees")
	}
	if math.IsNaN(m.BaseMargin) || math.IsInf(m.BaseMargin, 0) {
		return fmt.Errorf("model base margin is not finite")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				if n.Right >= 0 {
					return fmt.Errorf("tree %d node %d: half-open leaf", ti, ni)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= len(m.FeatureNames) {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
			if !(n.Cover > 0) {
				return fmt.Errorf("tree %d node %d: non-positive cover", ti, ni)
			}
		}
	}
	return nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

package gbdt

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Defaults for Params.
const (
	DefaultTrees          = 100
	DefaultMaxDepth       = 4
	DefaultLearningRate   = 0.1
	DefaultLambda         = 1.0
	DefaultMinChildWeight = 1.0
)

// Errors returned by Fit.
var (
	ErrEmpty       = errors.New("training set is empty")
	ErrSingleClass = errors.New("training labels contain fewer than two classes")
	ErrParams      = errors.New("invalid boosting parameters")
)

// Params controls the boosting procedure.
type Params struct {
	Trees          int     `json:"trees" yaml:"trees"`
	MaxDepth       int     `json:"max_depth" yaml:"max_depth"`
	LearningRate   float64 `json:"learning_rate" yaml:"learning_rate"`
	Lambda         float64 `json:"lambda" yaml:"lambda"`
	Gamma          float64 `json:"gamma" yaml:"gamma"`
	MinChildWeight float64 `json:"min_child_weight" yaml:"min_child_weight"`
}

// DefaultParams returns 100 depth-4 trees at learning rate 0.1.
func DefaultParams() Params {
	return Params{
		Trees:          DefaultTrees,
		MaxDepth:       DefaultMaxDepth,
		LearningRate:   DefaultLearningRate,
		Lambda:         DefaultLambda,
		MinChildWeight: DefaultMinChildWeight,
	}
}

func (p Params) validate() error {
	switch {
	case p.Trees < 1:
		return fmt.Errorf("%w: trees must be >= 1, got %d", ErrParams, p.Trees)
	case p.MaxDepth < 1:
		return fmt.Errorf("%w: max depth must be >= 1, got %d", ErrParams, p.MaxDepth)
	case !(p.LearningRate > 0) || p.LearningRate > 1:
		return fmt.Errorf("%w: learning rate must be in (0, 1], got %v", ErrParams, p.LearningRate)
	case p.Lambda < 0:
		return fmt.Errorf("%w: lambda must be >= 0, got %v", ErrParams, p.Lambda)
	case p.Gamma < 0:
		return fmt.Errorf("%w: gamma must be >= 0, got %v", ErrParams, p.Gamma)
	case p.MinChildWeight < 0:
		return fmt.Errorf("%w: min child weight must be >= 0, got %v", ErrParams, p.MinChildWeight)
	}
	return nil
}

// Fit trains a binary classifier on X (rows × len(names)) and labels y in
// {0, 1}. Training is deterministic: equal inputs give identical trees.
func Fit(X [][]float64, y []float64, names []string, p Params) (*Model, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, ErrEmpty
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("got %d rows but %d labels", len(X), len(y))
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("feature names are required")
	}

	var positives float64
	for i, row := range X {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), len(names))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d feature %s is not finite", i, names[j])
			}
		}
		switch y[i] {
		case 0:
		case 1:
			positives++
		default:
			return nil, fmt.Errorf("row %d label %v is not 0 or 1", i, y[i])
		}
	}
	if positives == 0 || positives == float64(len(y)) {
		return nil, ErrSingleClass
	}

	rate := positives / float64(len(y))
	m := &Model{
		FeatureNames: append([]string(nil), names...),
		BaseMargin:   math.Log(rate / (1 - rate)),
		Params:       p,
		Trees:        make([]Tree, 0, p.Trees),
	}

	b := newBuilder(X, p)
	margin := make([]float64, len(X))
	for i := range margin {
		margin[i] = m.BaseMargin
	}

	for round := 0; round < p.Trees; round++ {
		for i := range X {
			prob := sigmoid(margin[i])
			b.grad[i] = prob - y[i]
			b.hess[i] = prob * (1 - prob)
		}
		tree := b.build()
		for i := range X {
			margin[i] += tree.Predict(X[i])
		}
		m.Trees = append(m.Trees, tree)
	}

	slog.Debug("gbdt fit complete",
		"rows", len(X),
		"features", len(names),
		"trees", len(m.Trees),
		"positive_rate", rate,
		"log_loss", logLoss(margin, y))

	return m, nil
}

type builder struct {
	X      [][]float64
	p      Params
	grad   []float64
	hess   []float64
	sorted [][]int // per feature, row indices ordered by value
	nodes  []Node
}

func newBuilder(X [][]float64, p Params) *builder {
	nf := len(X[0])
	b := &builder{
		X:      X,
		p:      p,
		grad:   make([]float64, len(X)),
		hess:   make([]float64, len(X)),
		sorted: make([][]int, nf),
	}
	for f := 0; f < nf; f++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, c int) bool { return X[idx[a]][f] < X[idx[c]][f] })
		b.sorted[f] = idx
	}
	return b
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build() Tree {
	b.nodes = nil
	rows := make([]bool, len(b.X))
	for i := range rows {
		rows[i] = true
	}
	b.grow(rows, 0)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree over the selected rows and returns its index.
func (b *builder) grow(rows []bool, depth int) int {
	var g, h float64
	for i, in := range rows {
		if in {
			g += b.grad[i]
			h += b.hess[i]
		}
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Value:   -g / (h + b.p.Lambda) * b.p.LearningRate,
		Cover:   h,
	})
	if depth >= b.p.MaxDepth {
		return idx
	}

	best, ok := b.bestSplit(rows, g, h)
	if !ok {
		return idx
	}

	left := make([]bool, len(rows))
	right := make([]bool, len(rows))
	for i, in := range rows {
		if !in {
			continue
		}
		if b.X[i][best.feature] < best.threshold {
			left[i] = true
		} else {
			right[i] = true
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	n := &b.nodes[idx]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	n.Value = 0
	return idx
}

// bestSplit scans every feature in order for the highest-gain threshold.
// Only strictly better gains replace the current best, so ties keep the
// earlier feature and the lower threshold.
func (b *builder) bestSplit(rows []bool, g, h float64) (split, bool) {
	lambda := b.p.Lambda
	parent := g * g / (h + lambda)
	best := split{gain: 0}
	found := false

	for f, order := range b.sorted {
		var gl, hl float64
		prev := math.NaN()
		for _, i := range order {
			if !rows[i] {
				continue
			}
			v := b.X[i][f]
			if !math.IsNaN(prev) && v > prev && hl >= b.p.MinChildWeight && h-hl >= b.p.MinChildWeight {
				gr, hr := g-gl, h-hl
				gain := 0.5*(gl*gl/(hl+lambda)+gr*gr/(hr+lambda)-parent) - b.p.Gamma
				if gain > best.gain {
					t := prev + (v-prev)/2
					if t <= prev {
						// adjacent floats: the midpoint rounded down
						t = v
					}
					best = split{feature: f, threshold: t, gain: gain}
					found = true
				}
			}
			gl += b.grad[i]
			hl += b.hess[i]
			prev = v
		}
	}
	return best, found
}

func logLoss(margin, y []float64) float64 {
	const eps = 1e-15
	var sum float64
	for i := range margin {
		p := math.Min(math.Max(sigmoid(margin[i]), eps), 1-eps)
		sum -= y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
	}
	return sum / float64(len(margin))
}

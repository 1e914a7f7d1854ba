package gbdt

// Contributions returns exact per-feature attributions for x together with
// the model's expected margin. They are additive:
//
//	sum(phi) + expected == Margin(x)
//
// up to floating point rounding. Attributions are computed per tree with
// the path-dependent TreeSHAP recursion, using node cover as the
// conditional sample weight, and summed across the ensemble.
func (m *Model) Contributions(x []float64) (phi []float64, expected float64) {
	phi = make([]float64, len(m.FeatureNames))
	for i := range m.Trees {
		m.Trees[i].contributions(x, phi)
	}
	return phi, m.ExpectedValue()
}

// pathElement tracks one feature on the current root-to-node path:
// zero is the fraction of "feature unknown" paths that flow through,
// one is 1 when x itself flows through, weight is the permutation weight.
type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

func (t *Tree) contributions(x, phi []float64) {
	t.recurse(0, x, phi, nil, 1, 1, -1)
}

func (t *Tree) recurse(idx int, x, phi []float64, parent []pathElement, zero, one float64, feature int) {
	path := make([]pathElement, len(parent), len(parent)+1)
	copy(path, parent)
	path = extendPath(path, zero, one, feature)

	n := &t.Nodes[idx]
	if n.IsLeaf() {
		for i := 1; i < len(path); i++ {
			w := unwoundPathSum(path, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * n.Value
		}
		return
	}

	hot, cold := n.Left, n.Right
	if !(x[n.Feature] < n.Threshold) {
		hot, cold = cold, hot
	}

	inZero, inOne := 1.0, 1.0
	for k := 1; k < len(path); k++ {
		if path[k].feature == n.Feature {
			inZero, inOne = path[k].zero, path[k].one
			path = unwindPath(path, k)
			break
		}
	}

	t.recurse(hot, x, phi, path, t.Nodes[hot].Cover/n.Cover*inZero, inOne, n.Feature)
	t.recurse(cold, x, phi, path, t.Nodes[cold].Cover/n.Cover*inZero, 0, n.Feature)
}

func extendPath(path []pathElement, zero, one float64, feature int) []pathElement {
	d := len(path)
	w := 0.0
	if d == 0 {
		w = 1
	}
	path = append(path, pathElement{feature: feature, zero: zero, one: one, weight: w})
	for i := d - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / float64(d+1)
		path[i].weight = zero * path[i].weight * float64(d-i) / float64(d+1)
	}
	return path
}

// unwindPath undoes the extension of element k and returns the shorter path.
func unwindPath(path []pathElement, k int) []pathElement {
	d := len(path) - 1
	one, zero := path[k].one, path[k].zero
	next := path[d].weight
	for i := d - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * float64(d+1) / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(d-i)/float64(d+1)
		} else {
			path[i].weight = path[i].weight * float64(d+1) / (zero * float64(d-i))
		}
	}
	for i := k; i < d; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
	return path[:d]
}

// unwoundPathSum is the total permutation weight the path would have if
// element k were unwound, without modifying the path.
func unwoundPathSum(path []pathElement, k int) float64 {
	d := len(path) - 1
	one, zero := path[k].one, path[k].zero
	next := path[d].weight
	var total float64
	if one != 0 {
		for i := d - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(d-i)
		}
	} else {
		for i := d - 1; i >= 0; i-- {
			total += path[i].weight / (zero * float64(d-i))
		}
	}
	return total * float64(d+1)
}

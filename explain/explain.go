// Package explain turns per-feature attributions into the ranked risk
// factors returned with every prediction.
//
// The risk model predicts default, so a raw attribution pushing the margin
// up makes an applicant look riskier. Impacts are reported negated, still
// in log-odds units: a positive impact raises creditworthiness, a negative
// impact lowers it.
package explain

import (
	"math"
	"sort"

	"github.com/liamcoop/greenscore/features"
	"github.com/liamcoop/greenscore/gbdt"
)

// TopN is the number of risk factors returned by Explain.
const TopN = 3

// RiskFactor is one feature's contribution to a prediction.
type RiskFactor struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"`
}

// All returns one RiskFactor per model feature, in model feature order.
func All(m *gbdt.Model, v features.Vector) []RiskFactor {
	phi, _ := m.Contributions(v.Values())
	out := make([]RiskFactor, len(phi))
	for i, p := range phi {
		impact := 0 - p
		out[i] = RiskFactor{Feature: m.FeatureNames[i], Impact: impact}
	}
	return out
}

// Explain returns the TopN factors by descending absolute impact. Equal
// magnitudes keep model feature order.
func Explain(m *gbdt.Model, v features.Vector) []RiskFactor {
	return Top(All(m, v), TopN)
}

// Top sorts a copy of factors by descending absolute impact and keeps the
// first n.
func Top(factors []RiskFactor, n int) []RiskFactor {
	out := append([]RiskFactor(nil), factors...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Impact) > math.Abs(out[j].Impact)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

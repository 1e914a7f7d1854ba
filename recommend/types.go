// Package recommend maps a credit assessment to loan products and green
// subsidies. Each Rule is a CEL expression over the assessment; every active
// rule that matches contributes its recommendation.
package recommend

import (
	"errors"
	"time"
)

// Errors wrapped by the stores and the Engine.
var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleExists   = errors.New("rule already exists")
	ErrInvalidRule  = errors.New("rule validation failed")
)

// Rule is one recommendation rule. Lower Priority is listed first; equal
// priorities are ordered by ID.
type Rule struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Expression     string    `json:"expression"`
	Recommendation string    `json:"recommendation"`
	Priority       int       `json:"priority"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EvaluationResult contains the outcome of evaluating a rule.
type EvaluationResult struct {
	RuleID         string
	RuleName       string
	Recommendation string
	Matched        bool
	Error          error
	Trace          any // CEL evaluation state
}

// Assessment is the input rules are evaluated against. In CEL it is the
// variable `assessment` with fields credit_score, sdg_score (int) and
// default_probability (double).
type Assessment struct {
	CreditScore        int
	SDGScore           int
	DefaultProbability float64
}

// Facts returns the CEL activation for a.
func (a Assessment) Facts() map[string]any {
	return map[string]any{
		"assessment": map[string]any{
			"credit_score":        int64(a.CreditScore),
			"sdg_score":           int64(a.SDGScore),
			"default_probability": a.DefaultProbability,
		},
	}
}

func less(a, b *Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.ID < b.ID
}

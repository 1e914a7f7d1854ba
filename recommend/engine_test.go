package recommend

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(NewInMemoryRuleStore())
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return engine
}

func facts(score, sdg int) map[string]any {
	return Assessment{CreditScore: score, SDGScore: sdg, DefaultProbability: 0.2}.Facts()
}

// TestNewEngineCompilesExistingRules verifies active rules already in the
// store can be evaluated straight away.
func TestNewEngineCompilesExistingRules(t *testing.T) {
	store := NewInMemoryRuleStore()
	for _, r := range []*Rule{
		{ID: "rule-1", Expression: `assessment.credit_score > 700`, Active: true},
		{ID: "rule-2", Expression: `assessment.sdg_score > 50`, Active: true},
		{ID: "rule-3", Expression: `true`, Active: false},
	} {
		if err := store.Add(r); err != nil {
			t.Fatalf("Failed to add rule: %v", err)
		}
	}

	engine, err := NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	result, err := engine.Evaluate("rule-1", facts(720, 10))
	if err != nil {
		t.Fatalf("Evaluate() failed for pre-compiled rule: %v", err)
	}
	if !result.Matched {
		t.Error("rule-1 should match a score of 720")
	}

	if _, err := engine.Evaluate("rule-3", facts(720, 10)); err == nil {
		t.Error("inactive rule should not be compiled")
	}
}

func TestNewEngineFailsOnBadStoredRule(t *testing.T) {
	store := NewInMemoryRuleStore()
	store.Add(&Rule{ID: "broken", Expression: `assessment.credit_score >`, Active: true})

	if _, err := NewEngine(store); err == nil {
		t.Error("NewEngine() should fail when an active rule does not compile")
	}
}

func TestCompileRule(t *testing.T) {
	engine := newTestEngine(t)

	testCases := []struct {
		name       string
		expression string
		wantErr    string
	}{
		{"comparison", `assessment.credit_score > 750`, ""},
		{"probability", `assessment.default_probability < 0.25`, ""},
		{"mixed numeric", `assessment.credit_score > 750.5`, ""},
		{"syntax error", `assessment.credit_score >`, "compile error"},
		{"undeclared variable", `applicant.income > 10`, "undeclared reference"},
		{"non-boolean", `1 + 2`, "must be boolean"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.CompileRule("r", tc.expression)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("CompileRule(%q) failed: %v", tc.expression, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("CompileRule(%q) error = %v, want %q", tc.expression, err, tc.wantErr)
			}
		})
	}
}

func TestEvaluateBooleanResult(t *testing.T) {
	engine := newTestEngine(t)

	testCases := []struct {
		name       string
		expression string
		score      int
		wantMatch  bool
	}{
		{"above", `assessment.credit_score > 750`, 751, true},
		{"boundary", `assessment.credit_score > 750`, 750, false},
		{"inclusive", `assessment.credit_score <= 600`, 600, true},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := &Rule{ID: tc.name, Name: tc.name, Expression: tc.expression, Priority: i, Active: true}
			if err := engine.AddRule(rule); err != nil {
				t.Fatalf("AddRule() failed: %v", err)
			}
			result, err := engine.Evaluate(rule.ID, facts(tc.score, 0))
			if err != nil {
				t.Fatalf("Evaluate() failed: %v", err)
			}
			if result.Matched != tc.wantMatch {
				t.Errorf("Result.Matched = %v, want %v", result.Matched, tc.wantMatch)
			}
			if result.Trace == nil {
				t.Error("Result.Trace should not be nil when tracing is enabled")
			}
		})
	}
}

// TestEvaluateNonBooleanExpression verifies a dynamic non-boolean result
// counts as no match.
func TestEvaluateNonBooleanExpression(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.AddRule(&Rule{ID: "non-bool", Expression: `assessment.credit_score`, Active: true}); err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}

	result, err := engine.Evaluate("non-bool", facts(800, 0))
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Matched {
		t.Error("Non-boolean expression should result in Matched: false")
	}
}

// TestEvaluateErrorHandling verifies evaluation errors are captured in the
// result and returned.
func TestEvaluateErrorHandling(t *testing.T) {
	engine := newTestEngine(t)
	engine.AddRule(&Rule{ID: "error-rule", Expression: `assessment.income > 10`, Active: true})

	result, err := engine.Evaluate("error-rule", facts(700, 0))
	if result == nil {
		t.Fatal("Result should not be nil even on error")
	}
	if result.Error == nil || err == nil {
		t.Error("evaluation error should be reported")
	}
	if result.Matched {
		t.Error("Matched should be false when evaluation fails")
	}
}

func TestEvaluateUnknownRule(t *testing.T) {
	engine := newTestEngine(t)
	if _, err := engine.Evaluate("missing", facts(700, 0)); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Evaluate() error = %v, want ErrRuleNotFound", err)
	}
}

func TestAddRule(t *testing.T) {
	engine := newTestEngine(t)

	rule := &Rule{ID: "r1", Expression: `assessment.sdg_score > 70`, Active: true}
	if err := engine.AddRule(rule); err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}
	if err := engine.AddRule(&Rule{ID: "r1", Expression: `true`, Active: true}); !errors.Is(err, ErrRuleExists) {
		t.Errorf("duplicate AddRule() error = %v, want ErrRuleExists", err)
	}

	// the duplicate must not have replaced the compiled program
	result, err := engine.Evaluate("r1", facts(700, 10))
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Matched {
		t.Error("original expression should still be compiled")
	}
}

// staleGetStore reports every rule absent from Get, as a store does when
// another writer adds the same ID between the check and the insert.
type staleGetStore struct {
	*InMemoryRuleStore
}

func (s staleGetStore) Get(id string) (*Rule, error) {
	return nil, ErrRuleNotFound
}

func TestAddRuleLosingInsertKeepsExistingProgram(t *testing.T) {
	store := staleGetStore{NewInMemoryRuleStore()}
	engine, err := NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	rule := &Rule{ID: "r1", Expression: `assessment.credit_score > 650`, Recommendation: "keep it up", Active: true}
	if err := engine.AddRule(rule); err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}
	dup := &Rule{ID: "r1", Expression: `false`, Recommendation: "other", Active: true}
	if err := engine.AddRule(dup); !errors.Is(err, ErrRuleExists) {
		t.Fatalf("duplicate AddRule() error = %v, want ErrRuleExists", err)
	}

	recs, err := engine.Recommend(Assessment{CreditScore: 700, SDGScore: 10})
	if err != nil {
		t.Fatalf("Recommend() failed: %v", err)
	}
	if !reflect.DeepEqual(recs, []string{"keep it up"}) {
		t.Errorf("Recommend() = %v, want [keep it up]", recs)
	}
}

func TestAddRuleInvalidIsNotStored(t *testing.T) {
	engine := newTestEngine(t)

	err := engine.AddRule(&Rule{ID: "bad", Expression: `assessment.credit_score >`, Active: true})
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("AddRule() error = %v, want ErrInvalidRule", err)
	}
	if _, err := engine.GetRule("bad"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("invalid rule was stored: %v", err)
	}
}

func TestUpdateRule(t *testing.T) {
	engine := newTestEngine(t)
	engine.AddRule(&Rule{ID: "r1", Expression: `assessment.credit_score > 750`, Recommendation: "old", Active: true})

	if err := engine.UpdateRule(&Rule{ID: "r1", Expression: `assessment.credit_score > 500`, Recommendation: "new", Active: true}); err != nil {
		t.Fatalf("UpdateRule() failed: %v", err)
	}

	got, err := engine.Recommend(Assessment{CreditScore: 600})
	if err != nil {
		t.Fatalf("Recommend() failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"new"}) {
		t.Errorf("Recommend() = %v, want [new]", got)
	}

	err = engine.UpdateRule(&Rule{ID: "r1", Expression: `nope(`, Active: true})
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("UpdateRule() with bad expression error = %v, want ErrInvalidRule", err)
	}
	if err := engine.UpdateRule(&Rule{ID: "absent", Expression: `true`, Active: true}); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("UpdateRule() of unknown rule error = %v, want ErrRuleNotFound", err)
	}

	got, _ = engine.Recommend(Assessment{CreditScore: 600})
	if !reflect.DeepEqual(got, []string{"new"}) {
		t.Errorf("failed updates changed behaviour: Recommend() = %v", got)
	}
}

func TestDeleteRule(t *testing.T) {
	engine := newTestEngine(t)
	engine.AddRule(&Rule{ID: "r1", Expression: `true`, Recommendation: "always", Active: true})

	if err := engine.DeleteRule("r1"); err != nil {
		t.Fatalf("DeleteRule() failed: %v", err)
	}
	got, err := engine.Recommend(Assessment{})
	if err != nil {
		t.Fatalf("Recommend() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recommend() = %v after delete, want none", got)
	}
	if err := engine.DeleteRule("r1"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("second DeleteRule() error = %v, want ErrRuleNotFound", err)
	}
}

// TestEvaluateAllContinuesPastErrors verifies one failing rule does not hide
// the others.
func TestEvaluateAllContinuesPastErrors(t *testing.T) {
	engine := newTestEngine(t)
	engine.AddRule(&Rule{ID: "a", Expression: `assessment.unknown > 1`, Recommendation: "broken", Priority: 1, Active: true})
	engine.AddRule(&Rule{ID: "b", Expression: `true`, Recommendation: "ok", Priority: 2, Active: true})
	engine.AddRule(&Rule{ID: "c", Expression: `true`, Recommendation: "off", Priority: 3, Active: false})

	results, err := engine.EvaluateAll(facts(700, 0))
	if err != nil {
		t.Fatalf("EvaluateAll() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("EvaluateAll() returned %d results, want 2", len(results))
	}
	if results[0].Error == nil || !results[1].Matched {
		t.Errorf("results = %+v, %+v", results[0], results[1])
	}

	got, err := engine.Recommend(Assessment{CreditScore: 700})
	if err != nil {
		t.Fatalf("Recommend() failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"ok"}) {
		t.Errorf("Recommend() = %v, want [ok]", got)
	}
}

func TestRecommendOrdersByPriorityThenID(t *testing.T) {
	engine := newTestEngine(t)
	engine.AddRule(&Rule{ID: "z", Expression: `true`, Recommendation: "z", Priority: 1, Active: true})
	engine.AddRule(&Rule{ID: "b", Expression: `true`, Recommendation: "b", Priority: 2, Active: true})
	engine.AddRule(&Rule{ID: "a", Expression: `true`, Recommendation: "a", Priority: 2, Active: true})

	got, err := engine.Recommend(Assessment{})
	if err != nil {
		t.Fatalf("Recommend() failed: %v", err)
	}
	if want := []string{"z", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend() = %v, want %v", got, want)
	}
}

// TestDefaultRules verifies the built-in credit tiers and green incentives.
func TestDefaultRules(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults() failed: %v", err)
	}
	if err := engine.SeedDefaults(); err != nil {
		t.Fatalf("second SeedDefaults() failed: %v", err)
	}

	const (
		tier1   = "Tier 1 Micro-Loan: ₹50,000 @ 8% interest"
		tier2   = "Tier 2 Micro-Loan: ₹25,000 @ 12% interest"
		builder = "Credit Builder Loan: ₹5,000 (Secured)"
		solar   = "Green Subsidy: Eligible for 20% Solar Pump Rebate"
		kusum   = "Government Scheme: PM-KUSUM Yojana Priority"
	)

	testCases := []struct {
		name  string
		score int
		sdg   int
		want  []string
	}{
		{"top tier green", 812, 100, []string{tier1, solar, kusum}},
		{"tier 1 boundary", 751, 70, []string{tier1}},
		{"tier 2 upper", 750, 71, []string{tier2, solar, kusum}},
		{"tier 2 lower", 601, 0, []string{tier2}},
		{"builder boundary", 600, 50, []string{builder}},
		{"floor", 300, 0, []string{builder}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Recommend(Assessment{CreditScore: tc.score, SDGScore: tc.sdg})
			if err != nil {
				t.Fatalf("Recommend() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Recommend(%d, %d) = %v, want %v", tc.score, tc.sdg, got, tc.want)
			}
		})
	}
}

func TestListRules(t *testing.T) {
	engine := newTestEngine(t)
	engine.AddRule(&Rule{ID: "on", Expression: `true`, Priority: 2, Active: true})
	engine.AddRule(&Rule{ID: "off", Expression: `true`, Priority: 1, Active: false})

	rules, err := engine.ListRules()
	if err != nil {
		t.Fatalf("ListRules() failed: %v", err)
	}
	if len(rules) != 2 || rules[0].ID != "off" || rules[1].ID != "on" {
		t.Errorf("ListRules() = %v, want [off on]", rules)
	}
}

// TestEngineConcurrentUse verifies concurrent recommendation and rule
// mutation are safe.
func TestEngineConcurrentUse(t *testing.T) {
	engine := newTestEngine(t)
	engine.SeedDefaults()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := engine.Recommend(Assessment{CreditScore: 300 + j*12, SDGScore: j * 2}); err != nil {
					t.Errorf("Recommend() failed: %v", err)
					return
				}
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			id := "extra-" + string(rune('a'+i))
			if err := engine.AddRule(&Rule{ID: id, Expression: `assessment.sdg_score > 90`, Active: true}); err != nil {
				t.Errorf("AddRule() failed: %v", err)
			}
			if err := engine.DeleteRule(id); err != nil {
				t.Errorf("DeleteRule() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
}

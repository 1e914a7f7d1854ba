package recommend

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
)

// costLimit bounds the work a single rule evaluation may do.
const costLimit = 1000000

// Engine compiles rules from a RuleStore and evaluates them against
// assessments. Compiled programs are kept per rule ID.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache             // active rules, priority ordered
	programs map[string]cel.Program // ruleID -> compiled program
	mu       sync.RWMutex
}

// NewEnv returns the CEL environment rules are compiled in.
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("assessment", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
}

// NewEngine creates an engine whose rule cache never expires on its own.
func NewEngine(store RuleStore) (*Engine, error) {
	return NewEngineWithCache(store, NewInMemoryRulesCache(DefaultCacheConfig()))
}

// NewEngineWithCache creates an engine and compiles every active rule.
func NewEngineWithCache(store RuleStore, cache RulesCache) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    cache,
		programs: make(map[string]cel.Program),
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// CompileRule compiles and type-checks expression and caches the program
// under ruleID. Expressions must be boolean.
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}
	en.install(ruleID, prog)
	return nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile error: expression must be boolean, got %s", t)
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

func (en *Engine) install(ruleID string, prog cel.Program) {
	en.mu.Lock()
	en.programs[ruleID] = prog
	en.mu.Unlock()
}

// Evaluate evaluates a single rule against facts. Non-boolean results
// count as no match.
func (en *Engine) Evaluate(ruleID string, facts map[string]any) (*EvaluationResult, error) {
	rule, err := en.store.Get(ruleID)
	if err != nil {
		return nil, err
	}

	res := en.eval(rule, facts)
	return res, res.Error
}

// CompileAllRules compiles all active rules and primes the cache.
func (en *Engine) CompileAllRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)

	return nil
}

// AddRule compiles r and stores it. Nothing is stored if r does not compile.
func (en *Engine) AddRule(r *Rule) error {
	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrRuleExists, r.ID)
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	// The store is the arbiter of duplicates; an existing rule's program
	// must stay installed when Add loses.
	if err := en.store.Add(r); err != nil {
		return err
	}
	en.install(r.ID, prog)

	en.cache.Invalidate()

	return nil
}

// UpdateRule validates the new expression, then updates and recompiles.
// The previous program stays in place if either step fails.
func (en *Engine) UpdateRule(r *Rule) error {
	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.install(r.ID, prog)
	en.cache.Invalidate()

	return nil
}

// DeleteRule removes a rule from the store and its compiled program.
func (en *Engine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// GetRule returns a stored rule.
func (en *Engine) GetRule(ruleID string) (*Rule, error) {
	return en.store.Get(ruleID)
}

// ListRules returns every stored rule in priority order.
func (en *Engine) ListRules() ([]*Rule, error) {
	return en.store.List()
}

// EvaluateAll evaluates every active rule in priority order. A failing rule
// is reported in its result and does not stop the others.
func (en *Engine) EvaluateAll(facts map[string]any) ([]*EvaluationResult, error) {
	rules := en.cache.Get()

	if rules == nil {
		var err error
		rules, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(rules)
	}

	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, en.eval(rule, facts))
	}

	return results, nil
}

// Recommend returns the recommendations of every matching active rule in
// priority order. Rules that fail to evaluate are logged and skipped.
func (en *Engine) Recommend(a Assessment) ([]string, error) {
	results, err := en.EvaluateAll(a.Facts())
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Error != nil {
			slog.Warn("recommendation rule failed", "rule_id", r.RuleID, "error", r.Error)
			continue
		}
		if r.Matched {
			out = append(out, r.Recommendation)
		}
	}
	return out, nil
}

// SeedDefaults adds each of DefaultRules that is not already stored.
func (en *Engine) SeedDefaults() error {
	for _, r := range DefaultRules() {
		err := en.AddRule(r)
		if err != nil && !errors.Is(err, ErrRuleExists) {
			return fmt.Errorf("failed to seed rule %s: %w", r.ID, err)
		}
	}
	return nil
}

func (en *Engine) eval(rule *Rule, facts map[string]any) *EvaluationResult {
	res := &EvaluationResult{
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		Recommendation: rule.Recommendation,
	}

	en.mu.RLock()
	prog, exists := en.programs[rule.ID]
	en.mu.RUnlock()

	if !exists {
		res.Error = fmt.Errorf("rule %s is not compiled", rule.ID)
		return res
	}

	out, details, err := prog.Eval(facts)
	if err != nil {
		res.Error = err
		return res
	}

	if b, ok := out.Value().(bool); ok {
		res.Matched = b
	}
	if details != nil {
		res.Trace = details.State()
	}
	return res
}

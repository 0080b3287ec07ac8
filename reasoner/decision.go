package reasoner

import (
	"sort"
	"sync"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// Context carries the facts a rule is evaluated against.
type Context map[string]any

// Rule is a typed predicate over a decision context. Rules are registered
// explicitly by name; there is no reflection-based dispatch.
type Rule func(ctx Context) bool

// DecisionEngine is a named-rule registry combined with a Reasoner. Rules are
// evaluated independently (no short-circuiting between rules) and their
// outcomes feed option selection.
type DecisionEngine struct {
	mu       sync.RWMutex
	reasoner *Reasoner
	rules    map[string]Rule
}

// NewDecisionEngine constructs an empty engine backed by the given Reasoner.
// A nil reasoner gets a fresh instance.
func NewDecisionEngine(r *Reasoner) *DecisionEngine {
	if r == nil {
		r = New()
	}
	return &DecisionEngine{reasoner: r, rules: make(map[string]Rule)}
}

// AddRule registers rule under name, replacing any previous registration.
func (e *DecisionEngine) AddRule(name string, rule Rule) error {
	if name == "" {
		return core.NewValidationError("rule name must be non-empty").
			WithContext("field", "name")
	}
	if rule == nil {
		return core.NewValidationError("rule must be non-nil").
			WithContext("rule", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[name] = rule
	return nil
}

// EvaluateRule evaluates the named rule against ctx. An unknown rule name is
// a validation error rather than a silent false.
func (e *DecisionEngine) EvaluateRule(name string, ctx Context) (bool, error) {
	e.mu.RLock()
	rule, ok := e.rules[name]
	e.mu.RUnlock()
	if !ok {
		return false, core.NewValidationError("unknown rule").
			WithContext("rule", name)
	}
	return rule(ctx), nil
}

// EvaluateAllRules evaluates every registered rule against ctx and returns
// the complete name→outcome mapping. All rules run; no outcome suppresses
// another.
func (e *DecisionEngine) EvaluateAllRules(ctx Context) map[string]bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	results := make(map[string]bool, len(e.rules))
	for name, rule := range e.rules {
		results[name] = rule(ctx)
	}
	return results
}

// MakeDecision evaluates all rules against ctx and feeds the outcomes to the
// Reasoner as selection criteria.
func (e *DecisionEngine) MakeDecision(options []map[string]any, ctx Context) (Decision, error) {
	outcomes := e.EvaluateAllRules(ctx)
	criteria := make(map[string]any, len(outcomes))
	for name, held := range outcomes {
		criteria[name] = held
	}
	return e.reasoner.MakeDecision(options, criteria)
}

// Rules returns the sorted names of all registered rules.
func (e *DecisionEngine) Rules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.rules))
	for name := range e.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package reasoner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// ExecutionMode is a recommendation of how a task's steps should be
// scheduled.
type ExecutionMode string

const (
	// ModeSequential runs steps one at a time in topological order.
	ModeSequential ExecutionMode = "sequential"
	// ModeParallel runs independent steps concurrently.
	ModeParallel ExecutionMode = "parallel"
	// ModeHybrid runs dependency layers in order with concurrency inside
	// each layer.
	ModeHybrid ExecutionMode = "hybrid"
)

// TaskComplexity is a scored, factor-annotated assessment of how hard a task
// is to execute. Instances are produced fresh per analysis and immutable once
// returned.
type TaskComplexity struct {
	Score          int      `json:"score"` // 1-10 scale
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
}

// RouteResult is the outcome of matching a free-text task to the best
// candidate workflow.
type RouteResult struct {
	Workflow     string   `json:"workflow"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives"`
}

// Decision records a selection among options with its justification.
type Decision struct {
	Selected     map[string]any   `json:"selected"`
	Reasoning    string           `json:"reasoning"`
	Alternatives []map[string]any `json:"alternatives"`
	Timestamp    time.Time        `json:"timestamp"`
}

// HistoryEntry is one audit record in a Reasoner's decision history.
type HistoryEntry struct {
	Kind       string         `json:"kind"` // "route", "decision" or "domain"
	Task       string         `json:"task,omitempty"`
	Workflow   string         `json:"workflow,omitempty"`
	Domain     string         `json:"domain,omitempty"`
	Selected   map[string]any `json:"selected,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// complexityFactor couples a task-text predicate with the factor name and
// score contribution it adds. The table is fixed so analysis stays a pure
// function of its inputs.
type complexityFactor struct {
	name   string
	weight int
	match  func(task string) bool
}

func containsAny(substrs ...string) func(string) bool {
	return func(task string) bool {
		for _, s := range substrs {
			if strings.Contains(task, s) {
				return true
			}
		}
		return false
	}
}

var multiStepRe = regexp.MustCompile(`\band\b|\bthen\b|,|;`)

var complexityFactors = []complexityFactor{
	{name: "long_description", weight: 2, match: func(task string) bool { return len(task) > 100 }},
	{name: "multi_step", weight: 2, match: func(task string) bool { return multiStepRe.MatchString(task) }},
	{name: "parallel_execution", weight: 2, match: containsAny("parallel", "concurrent")},
	{name: "integration_required", weight: 2, match: containsAny("integrat")},
	{name: "external_interface", weight: 1, match: containsAny("api", "endpoint", "webhook")},
	{name: "security_sensitive", weight: 1, match: containsAny("auth", "security", "encrypt", "permission")},
	{name: "throttling", weight: 1, match: containsAny("rate limit", "rate-limit", "throttl")},
	{name: "data_persistence", weight: 1, match: containsAny("database", "storage", "persist", "migrat")},
	{name: "error_handling", weight: 1, match: containsAny("error", "exception", "failure", "retry")},
	{name: "deployment", weight: 1, match: containsAny("deploy", "release", "rollout")},
}

// Reasoner evaluates task descriptions to produce complexity scores,
// execution mode recommendations, domain classifications and workflow routing
// decisions. Analysis is deterministic; only the decision history mutates,
// serialized per instance.
type Reasoner struct {
	mu      sync.Mutex
	history []HistoryEntry
	domains *DomainRegistry
}

// New constructs a Reasoner with an empty decision history and the default
// domain registry.
func New() *Reasoner {
	return &Reasoner{domains: NewDomainRegistry()}
}

// Domains exposes the registry used by DetectDomain so callers can register
// additional domains.
func (r *Reasoner) Domains() *DomainRegistry {
	return r.domains
}

// AnalyzeTaskComplexity scores a task description on a 1-10 scale. The score,
// contributing factors and banded recommendation are a pure function of the
// task text and context: the same inputs always yield the same result.
func (r *Reasoner) AnalyzeTaskComplexity(task string, context map[string]any) TaskComplexity {
	lower := strings.ToLower(task)

	score := 1
	var factors []string
	for _, f := range complexityFactors {
		if f.match(lower) {
			factors = append(factors, f.name)
			score += f.weight
		}
	}
	if len(context) > 0 {
		factors = append(factors, "contextual_constraints")
		score++
	}
	if score > 10 {
		score = 10
	}

	recommendation := "complex"
	switch {
	case score <= 3:
		recommendation = "simple"
	case score <= 6:
		recommendation = "moderate"
	}

	return TaskComplexity{Score: score, Factors: factors, Recommendation: recommendation}
}

// RecommendExecutionMode derives a scheduling recommendation from the task's
// complexity: low scores favor sequential execution, high scores favor
// parallel execution, the middle band is hybrid.
func (r *Reasoner) RecommendExecutionMode(task string, context map[string]any) ExecutionMode {
	complexity := r.AnalyzeTaskComplexity(task, context)
	switch {
	case complexity.Score <= 3:
		return ModeSequential
	case complexity.Score >= 7:
		return ModeParallel
	default:
		return ModeHybrid
	}
}

// DetectDomain classifies the task into the best matching registered domain
// using keyword scoring. A "domain" key in context naming a registered domain
// wins outright with full confidence. When no keywords match, the result
// carries a nil Domain and zero confidence rather than an error.
func (r *Reasoner) DetectDomain(task string, context map[string]any) DomainDetectionResult {
	if name, ok := context["domain"].(string); ok && name != "" {
		if d, found := r.domains.Get(name); found {
			r.recordDomain(task, d.Name, 1.0)
			return DomainDetectionResult{
				Domain:     d,
				Confidence: 1.0,
				Reasoning:  fmt.Sprintf("domain %q explicitly specified in context", name),
			}
		}
	}

	candidates := r.domains.Detect(task, 3)
	if len(candidates) == 0 {
		return DomainDetectionResult{
			Confidence: 0,
			Reasoning:  "no domain keywords matched the task",
		}
	}

	primary := candidates[0]
	score := primary.MatchScore(task)

	// Normalize against a fraction of the maximum attainable score: matching
	// every keyword is never required for full confidence.
	maxPossible := float64(len(primary.Keywords)) * 2
	denom := maxPossible * 0.3
	if denom < 1 {
		denom = 1
	}
	confidence := score / denom
	if confidence > 1 {
		confidence = 1
	}

	r.recordDomain(task, primary.Name, confidence)

	return DomainDetectionResult{
		Domain:       primary,
		Confidence:   confidence,
		Reasoning:    fmt.Sprintf("detected domain %q from keyword matching (score %.1f)", primary.Name, score),
		Alternatives: candidates[1:],
	}
}

func (r *Reasoner) recordDomain(task, domain string, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, HistoryEntry{
		Kind:       "domain",
		Task:       task,
		Domain:     domain,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	})
}

// RouteTask scores the task against each candidate workflow name by token
// overlap and returns the best match with a confidence in [0, 1] plus the
// remaining candidates ordered by descending score. An empty candidate list
// yields a zero-confidence no-match result rather than an error.
func (r *Reasoner) RouteTask(task string, availableWorkflows []string) RouteResult {
	if len(availableWorkflows) == 0 {
		return RouteResult{
			Confidence: 0,
			Reasoning:  "no workflows available to route to",
		}
	}

	lower := strings.ToLower(task)

	type scored struct {
		name  string
		score float64
		index int
	}
	candidates := make([]scored, len(availableWorkflows))
	for i, name := range availableWorkflows {
		candidates[i] = scored{name: name, score: nameOverlap(lower, name), index: i}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].index < candidates[b].index
	})

	best := candidates[0]
	confidence := 0.5 + 0.4*best.score
	reasoning := fmt.Sprintf("routed to %q: %.0f%% of its name tokens appear in the task", best.name, best.score*100)
	if best.score == 0 {
		confidence = 0.3
		reasoning = fmt.Sprintf("no candidate matched the task; defaulting to %q", best.name)
	}

	alternatives := make([]string, 0, len(candidates)-1)
	for _, c := range candidates[1:] {
		alternatives = append(alternatives, c.name)
	}

	r.mu.Lock()
	r.history = append(r.history, HistoryEntry{
		Kind:       "route",
		Task:       task,
		Workflow:   best.name,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	})
	r.mu.Unlock()

	return RouteResult{
		Workflow:     best.name,
		Confidence:   confidence,
		Reasoning:    reasoning,
		Alternatives: alternatives,
	}
}

// nameOverlap returns the fraction of a workflow name's tokens present in the
// lowercased task text.
func nameOverlap(taskLower, workflowName string) float64 {
	tokens := strings.FieldsFunc(strings.ToLower(workflowName), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(taskLower, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// MakeDecision selects one option from options. When criteria contains a true
// boolean keyed by an option's "name", that option wins; otherwise the first
// option is kept as the default. The decision is appended to the history.
func (r *Reasoner) MakeDecision(options []map[string]any, criteria map[string]any) (Decision, error) {
	if len(options) == 0 {
		return Decision{}, core.NewValidationError("no options provided").
			WithContext("field", "options")
	}

	selectedIdx := 0
	reasoning := "selected first option by default"
	for i, opt := range options {
		name, _ := opt["name"].(string)
		if name == "" {
			continue
		}
		if v, ok := criteria[name].(bool); ok && v {
			selectedIdx = i
			reasoning = fmt.Sprintf("criterion %q held, selecting matching option", name)
			break
		}
	}
	selected := options[selectedIdx]

	alternatives := make([]map[string]any, 0, len(options)-1)
	for i := range options {
		if i == selectedIdx {
			continue
		}
		alternatives = append(alternatives, options[i])
	}

	decision := Decision{
		Selected:     selected,
		Reasoning:    reasoning,
		Alternatives: alternatives,
		Timestamp:    time.Now().UTC(),
	}

	r.mu.Lock()
	r.history = append(r.history, HistoryEntry{
		Kind:      "decision",
		Selected:  selected,
		Timestamp: decision.Timestamp,
	})
	r.mu.Unlock()

	return decision, nil
}

// DecisionHistory returns a copy of the append-only decision history.
func (r *Reasoner) DecisionHistory() []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]HistoryEntry(nil), r.history...)
}

// ClearHistory empties the decision history.
func (r *Reasoner) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

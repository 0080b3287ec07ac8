package workflow

import (
	"time"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// DefaultTimeout is the wall-clock budget applied to a workflow run when no
// override is supplied.
const DefaultTimeout = 300 * time.Second

// Step is a single schedulable unit of work bound to an agent by name. Input
// and output keys name the shared-state data the step reads and produces;
// DependsOn lists explicit predecessor step names. A Step is immutable once
// added to a Workflow.
type Step struct {
	Name        string         `json:"name"`
	AgentID     string         `json:"agent_id"`
	Description string         `json:"description,omitempty"`
	InputKeys   []string       `json:"input_keys,omitempty"`
	OutputKeys  []string       `json:"output_keys,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// StepOptions holds the optional fields of a Step.
type StepOptions struct {
	Description string
	InputKeys   []string
	OutputKeys  []string
	DependsOn   []string
	Metadata    map[string]any
}

// NewStep constructs a Step. Name and agent reference are required.
func NewStep(name, agentID string, optFns ...func(o *StepOptions)) (*Step, error) {
	opts := StepOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		return nil, core.NewValidationError("step name must be non-empty").
			WithContext("field", "name")
	}
	if agentID == "" {
		return nil, core.NewValidationError("step agent reference must be non-empty").
			WithContext("field", "agent_id").
			WithContext("step", name)
	}

	return &Step{
		Name:        name,
		AgentID:     agentID,
		Description: opts.Description,
		InputKeys:   append([]string(nil), opts.InputKeys...),
		OutputKeys:  append([]string(nil), opts.OutputKeys...),
		DependsOn:   append([]string(nil), opts.DependsOn...),
		Metadata:    opts.Metadata,
	}, nil
}

// Workflow aggregates an insertion-ordered sequence of uniquely named steps
// with a shared wall-clock timeout. The workflow owns its steps exclusively;
// steps have no lifecycle outside it.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Timeout     time.Duration  `json:"timeout"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	steps []*Step
	index map[string]*Step
}

// Options holds the optional fields of a Workflow.
type Options struct {
	Description string
	Timeout     time.Duration
	Metadata    map[string]any
}

// New constructs an empty Workflow with a generated ID. The timeout defaults
// to DefaultTimeout and must be positive.
func New(name string, optFns ...func(o *Options)) (*Workflow, error) {
	opts := Options{Timeout: DefaultTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		return nil, core.NewValidationError("workflow name must be non-empty").
			WithContext("field", "name")
	}
	if opts.Timeout <= 0 {
		return nil, core.NewValidationError("workflow timeout must be positive").
			WithContext("field", "timeout").
			WithContext("value", opts.Timeout.String()).
			WithContext("workflow", name)
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Workflow{
		ID:          core.NewID(),
		Name:        name,
		Description: opts.Description,
		Timeout:     opts.Timeout,
		Metadata:    metadata,
		index:       make(map[string]*Step),
	}, nil
}

// AddStep appends step to the workflow. A step whose name is already present
// is rejected with a validation error and the existing step is left
// unchanged.
func (w *Workflow) AddStep(step *Step) error {
	if step == nil {
		return core.NewValidationError("step must be non-nil").
			WithContext("workflow", w.Name)
	}
	if _, exists := w.index[step.Name]; exists {
		return core.NewValidationError("duplicate step name").
			WithContext("workflow", w.Name).
			WithContext("step", step.Name)
	}
	w.steps = append(w.steps, step)
	w.index[step.Name] = step
	return nil
}

// GetStep returns the step with the given name. A missing name is a normal
// query miss, reported via the boolean, never an error.
func (w *Workflow) GetStep(name string) (*Step, bool) {
	s, ok := w.index[name]
	return s, ok
}

// Steps returns the steps in insertion order. The returned slice is a copy;
// the steps themselves are shared.
func (w *Workflow) Steps() []*Step {
	return append([]*Step(nil), w.steps...)
}

// Len returns the number of steps.
func (w *Workflow) Len() int { return len(w.steps) }

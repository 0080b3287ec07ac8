package workflow

import "time"

// Builder assembles a Workflow fluently, deferring error reporting to Build
// so call sites stay chainable:
//
//	wf, err := workflow.NewBuilder("release").
//		Timeout(10 * time.Minute).
//		Step("compile", "dev-1", func(o *StepOptions) { o.OutputKeys = []string{"binary"} }).
//		Step("test", "qa-1", func(o *StepOptions) { o.InputKeys = []string{"binary"} }).
//		Build()
type Builder struct {
	name    string
	optFns  []func(o *Options)
	stepFns []func() (*Step, error)
	errs    []error
}

// NewBuilder starts building a workflow with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Description sets the workflow description.
func (b *Builder) Description(desc string) *Builder {
	b.optFns = append(b.optFns, func(o *Options) { o.Description = desc })
	return b
}

// Timeout sets the workflow wall-clock budget.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.optFns = append(b.optFns, func(o *Options) { o.Timeout = d })
	return b
}

// Metadata sets the workflow metadata map.
func (b *Builder) Metadata(m map[string]any) *Builder {
	b.optFns = append(b.optFns, func(o *Options) { o.Metadata = m })
	return b
}

// Step declares a step inline.
func (b *Builder) Step(name, agentID string, optFns ...func(o *StepOptions)) *Builder {
	b.stepFns = append(b.stepFns, func() (*Step, error) { return NewStep(name, agentID, optFns...) })
	return b
}

// AddStep appends a pre-constructed step.
func (b *Builder) AddStep(step *Step) *Builder {
	b.stepFns = append(b.stepFns, func() (*Step, error) { return step, nil })
	return b
}

// Build materializes the workflow, returning the first construction or
// validation error encountered.
func (b *Builder) Build() (*Workflow, error) {
	wf, err := New(b.name, b.optFns...)
	if err != nil {
		return nil, err
	}
	for _, fn := range b.stepFns {
		step, err := fn()
		if err != nil {
			return nil, err
		}
		if err := wf.AddStep(step); err != nil {
			return nil, err
		}
	}
	// Surface dependency problems at build time rather than first execution.
	if _, err := wf.Layers(); err != nil {
		return nil, err
	}
	return wf, nil
}

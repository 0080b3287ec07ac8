package agent

import (
	"github.com/agenticsdlc/agenticsdlc/core"
)

// DefaultMaxIterations bounds step attempts when no override is supplied.
const DefaultMaxIterations = 10

// Agent is a named, role-tagged execution descriptor bound to a model
// identifier and a bounded iteration budget. It is passive: the engine binds
// it to a live model client and drives execution. The ID is generated once at
// construction and stays stable for the agent's lifetime; Metadata is an
// open-ended mapping for caller annotations and never affects identity.
type Agent struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	ModelName     string         `json:"model_name"`
	SystemPrompt  string         `json:"system_prompt,omitempty"`
	Tools         []string       `json:"tools,omitempty"`
	MaxIterations int            `json:"max_iterations"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Options holds the optional fields of an Agent.
type Options struct {
	SystemPrompt  string
	Tools         []string
	MaxIterations int
	Metadata      map[string]any
}

// New constructs an Agent descriptor. Name and model name are required; the
// iteration budget defaults to DefaultMaxIterations and must be positive.
func New(name, role, modelName string, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{MaxIterations: DefaultMaxIterations}
	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		return nil, core.NewValidationError("agent name must be non-empty").
			WithContext("field", "name")
	}
	if modelName == "" {
		return nil, core.NewValidationError("agent model name must be non-empty").
			WithContext("field", "model_name").
			WithContext("agent", name)
	}
	if opts.MaxIterations <= 0 {
		return nil, core.NewValidationError("agent max iterations must be positive").
			WithContext("field", "max_iterations").
			WithContext("value", opts.MaxIterations).
			WithContext("agent", name)
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Agent{
		ID:            core.NewID(),
		Name:          name,
		Role:          role,
		ModelName:     modelName,
		SystemPrompt:  opts.SystemPrompt,
		Tools:         append([]string(nil), opts.Tools...),
		MaxIterations: opts.MaxIterations,
		Metadata:      metadata,
	}, nil
}

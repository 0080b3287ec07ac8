package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/agenticsdlc/agenticsdlc/agent"
	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/agenticsdlc/agenticsdlc/logging"
	"github.com/agenticsdlc/agenticsdlc/model"
	"github.com/agenticsdlc/agenticsdlc/workflow"
)

// Executor carries out a single workflow step on behalf of an agent.
// Implementations must:
//   - Respect ctx cancellation
//   - Never panic (recover internally and return an error)
//   - Treat input as read-only and return produced values in a fresh map
type Executor interface {
	ExecuteStep(
		ctx context.Context,
		ag *agent.Agent,
		step *workflow.Step,
		input map[string]any,
	) (map[string]any, error)
}

// StepFunc is a plain function bound to a step name by a FuncExecutor.
type StepFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// FuncExecutor dispatches steps to registered Go functions keyed by step
// name. It is the executor of choice for tests, examples, and workflows
// whose steps are deterministic local computations.
type FuncExecutor struct {
	mu    sync.RWMutex
	funcs map[string]StepFunc
}

// NewFuncExecutor constructs an empty FuncExecutor.
func NewFuncExecutor() *FuncExecutor {
	return &FuncExecutor{funcs: make(map[string]StepFunc)}
}

// Register binds fn to the given step name. Registering the same name twice
// replaces the previous binding.
func (x *FuncExecutor) Register(stepName string, fn StepFunc) error {
	if stepName == "" {
		return core.NewValidationError("step name must be non-empty")
	}
	if fn == nil {
		return core.NewValidationError("step function must be non-nil").
			WithContext("step", stepName)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.funcs[stepName] = fn
	return nil
}

// ExecuteStep implements Executor. Panics raised by step functions are
// recovered and surfaced as agent errors.
func (x *FuncExecutor) ExecuteStep(
	ctx context.Context,
	ag *agent.Agent,
	step *workflow.Step,
	input map[string]any,
) (output map[string]any, err error) {
	x.mu.RLock()
	fn, ok := x.funcs[step.Name]
	x.mu.RUnlock()

	if !ok {
		return nil, core.NewWorkflowError("no function registered for step").
			WithContext("step", step.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = core.NewAgentError("step function panicked").
				WithContext("step", step.Name).
				WithContext("agent", ag.Name).
				Wrap(fmt.Errorf("%v\n%s", r, debug.Stack()))
		}
	}()

	return fn(ctx, input)
}

// ModelExecutor carries out steps by prompting a language model selected via
// the agent's ModelName. Every declared output key of the step receives the
// final completion text; steps without output keys produce a single "result"
// entry.
type ModelExecutor struct {
	mu     sync.RWMutex
	models map[string]model.Model
	logger logging.Logger
}

// NewModelExecutor constructs a ModelExecutor, optionally pre-registering models.
func NewModelExecutor(models ...model.Model) *ModelExecutor {
	x := &ModelExecutor{
		models: make(map[string]model.Model),
		logger: logging.NoOpLogger{},
	}
	for _, m := range models {
		x.models[m.Info().Name] = m
	}
	return x
}

// SetLogger installs the logger used to record model call latency and token
// usage. Nil restores the silent default.
func (x *ModelExecutor) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.logger = l
}

// RegisterModel makes m available under its Info().Name. Registering the
// same name twice replaces the previous model.
func (x *ModelExecutor) RegisterModel(m model.Model) error {
	if m == nil {
		return core.NewValidationError("model must be non-nil")
	}
	name := m.Info().Name
	if name == "" {
		return core.NewValidationError("model name must be non-empty")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.models[name] = m
	return nil
}

// ExecuteStep implements Executor.
func (x *ModelExecutor) ExecuteStep(
	ctx context.Context,
	ag *agent.Agent,
	step *workflow.Step,
	input map[string]any,
) (map[string]any, error) {
	x.mu.RLock()
	m, ok := x.models[ag.ModelName]
	logger := x.logger
	x.mu.RUnlock()

	if !ok {
		return nil, core.NewModelError("model not registered").
			WithContext("model", ag.ModelName).
			WithContext("agent", ag.Name)
	}

	start := time.Now()
	resp, err := m.Generate(ctx, model.Request{
		System:   ag.SystemPrompt,
		Messages: []model.Message{{Role: "user", Text: buildStepPrompt(step, input)}},
	})
	recordModelCall(logger, ag.ModelName, resp, time.Since(start), err)
	if err != nil {
		return nil, core.NewModelError("generation failed").
			WithContext("model", ag.ModelName).
			WithContext("step", step.Name).
			Wrap(err)
	}

	if len(step.OutputKeys) == 0 {
		return map[string]any{"result": resp.Text}, nil
	}
	output := make(map[string]any, len(step.OutputKeys))
	for _, key := range step.OutputKeys {
		output[key] = resp.Text
	}
	return output, nil
}

// recordModelCall logs one generation, preferring the structured metrics
// surface when the configured logger provides it.
func recordModelCall(logger logging.Logger, modelName string, resp model.Response, dur time.Duration, err error) {
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if rec, ok := logger.(logging.MetricsRecorder); ok {
		rec.LogModelCall(modelName, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		logger.Warn("model call failed", "model", modelName, "duration_ms", dur.Milliseconds(), "error", err)
		return
	}
	logger.Debug("model call completed", "model", modelName, "token_count", tokens, "duration_ms", dur.Milliseconds())
}

// buildStepPrompt renders the step task plus its input state as the user turn.
// Input is serialized as JSON; map keys marshal in sorted order, keeping
// prompts deterministic.
func buildStepPrompt(step *workflow.Step, input map[string]any) string {
	var sb strings.Builder

	if step.Description != "" {
		sb.WriteString(step.Description)
	} else {
		sb.WriteString(step.Name)
	}

	if len(input) > 0 {
		if data, err := json.MarshalIndent(input, "", "  "); err == nil {
			sb.WriteString("\n\nInput:\n")
			sb.Write(data)
		}
	}

	return sb.String()
}

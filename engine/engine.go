package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agenticsdlc/agenticsdlc/agent"
	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/agenticsdlc/agenticsdlc/lifecycle"
	"github.com/agenticsdlc/agenticsdlc/logging"
	"github.com/agenticsdlc/agenticsdlc/reasoner"
	"github.com/agenticsdlc/agenticsdlc/workflow"
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// MaxConcurrentRuns limits how many workflow runs can execute
	// simultaneously. Execute fails fast once the limit is reached.
	MaxConcurrentRuns int

	// MaxParallelSteps bounds concurrency inside a single dependency layer
	// when the run executes in parallel or hybrid mode.
	MaxParallelSteps int

	// EventBufferSize sets the channel buffer size for event streaming.
	EventBufferSize int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	MaxParallelSteps:  4,
	EventBufferSize:   100,
}

// Options configures an Engine instance using the functional options pattern.
// All dependencies have in-memory defaults suitable for development and tests.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Executor carries out individual steps. Defaults to an empty
	// FuncExecutor if not provided.
	Executor Executor

	// RunStore persists run records. Defaults to an in-memory store.
	RunStore RunStore

	// Lifecycle coordinates the engine's phase machine. A fresh Manager in
	// the initialized phase is created if not provided.
	Lifecycle *lifecycle.Manager

	// Reasoner recommends execution modes for runs that don't pin one.
	Reasoner *reasoner.Reasoner

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// ExecuteOptions adjusts a single workflow run.
type ExecuteOptions struct {
	// Mode pins the execution mode for this run. When empty the engine asks
	// the reasoner for a recommendation based on the workflow description.
	Mode reasoner.ExecutionMode
}

// Engine schedules workflow runs over registered agents. It resolves each
// workflow's dependency layers, executes steps through the configured
// Executor with per-agent retry budgets, and streams progress events to the
// caller. All public methods are safe for concurrent use.
//
// The engine only accepts new runs while its lifecycle phase is running;
// pausing or stopping the engine rejects new work but lets in-flight runs
// finish (Stop and Shutdown cancel them).
type Engine struct {
	config   Config
	executor Executor
	runStore RunStore
	logger   logging.Logger

	lifecycle *lifecycle.Manager
	reasoner  *reasoner.Reasoner

	agents    *agent.Registry
	workflows *workflow.Registry

	// Active run tracking, keyed by run ID.
	activeRuns map[string]context.CancelFunc
	runsMu     sync.Mutex

	// Semaphore bounding concurrent runs.
	runSem chan struct{}
}

// New creates an Engine ready for agent and workflow registration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Executor:  NewFuncExecutor(),
		RunStore:  NewInMemoryRunStore(),
		Lifecycle: nil,
		Reasoner:  nil,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.MaxConcurrentRuns <= 0 {
		opts.Config.MaxConcurrentRuns = DefaultConfig.MaxConcurrentRuns
	}
	if opts.Config.MaxParallelSteps <= 0 {
		opts.Config.MaxParallelSteps = DefaultConfig.MaxParallelSteps
	}
	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}
	if opts.Lifecycle == nil {
		opts.Lifecycle = lifecycle.NewManager(func(o *lifecycle.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Reasoner == nil {
		opts.Reasoner = reasoner.New()
	}

	return &Engine{
		config:     opts.Config,
		executor:   opts.Executor,
		runStore:   opts.RunStore,
		logger:     opts.Logger,
		lifecycle:  opts.Lifecycle,
		reasoner:   opts.Reasoner,
		agents:     agent.NewRegistry(),
		workflows:  workflow.NewRegistry(),
		activeRuns: make(map[string]context.CancelFunc),
		runSem:     make(chan struct{}, opts.Config.MaxConcurrentRuns),
	}
}

// RegisterAgent adds an agent to the engine's registry.
func (e *Engine) RegisterAgent(a *agent.Agent) error { return e.agents.Register(a) }

// RegisterWorkflow adds a workflow to the engine's registry.
func (e *Engine) RegisterWorkflow(w *workflow.Workflow) error { return e.workflows.Register(w) }

// Agents exposes the agent registry for lookup and introspection.
func (e *Engine) Agents() *agent.Registry { return e.agents }

// Workflows exposes the workflow registry for lookup and introspection.
func (e *Engine) Workflows() *workflow.Registry { return e.workflows }

// Reasoner exposes the reasoner used for mode recommendations and routing.
func (e *Engine) Reasoner() *reasoner.Reasoner { return e.reasoner }

// Lifecycle exposes the phase machine, e.g. to register phase callbacks.
func (e *Engine) Lifecycle() *lifecycle.Manager { return e.lifecycle }

// Phase returns the engine's current lifecycle phase.
func (e *Engine) Phase() lifecycle.Phase { return e.lifecycle.Phase() }

// Start brings the engine from initialized to running.
func (e *Engine) Start() error {
	if err := e.lifecycle.TransitionTo(lifecycle.PhaseStarted); err != nil {
		return err
	}
	return e.lifecycle.TransitionTo(lifecycle.PhaseRunning)
}

// Pause suspends acceptance of new runs. In-flight runs continue.
func (e *Engine) Pause() error { return e.lifecycle.TransitionTo(lifecycle.PhasePaused) }

// Resume returns a paused engine to the running phase.
func (e *Engine) Resume() error { return e.lifecycle.TransitionTo(lifecycle.PhaseRunning) }

// Stop cancels all in-flight runs and moves the engine to the stopped phase.
func (e *Engine) Stop() error {
	e.cancelAllRuns()
	return e.lifecycle.TransitionTo(lifecycle.PhaseStopped)
}

// Shutdown cancels all in-flight runs and moves the engine to its terminal
// phase. A shutdown engine cannot be restarted.
func (e *Engine) Shutdown() error {
	e.cancelAllRuns()
	return e.lifecycle.TransitionTo(lifecycle.PhaseShutdown)
}

func (e *Engine) cancelAllRuns() {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	for id, cancel := range e.activeRuns {
		e.logger.Debug("cancelling run", "run_id", id)
		cancel()
	}
}

// StopRun cancels a single in-flight run by its ID.
func (e *Engine) StopRun(runID string) error {
	e.runsMu.Lock()
	cancel, ok := e.activeRuns[runID]
	e.runsMu.Unlock()

	if !ok {
		return core.NewWorkflowError("run not found").WithContext("run_id", runID)
	}
	cancel()
	return nil
}

// Run returns the stored record of a run by ID.
func (e *Engine) Run(runID string) (*Run, error) { return e.runStore.Get(runID) }

// Runs returns all stored run records ordered by start time.
func (e *Engine) Runs() ([]*Run, error) { return e.runStore.List() }

// Execute starts a workflow run asynchronously and returns channels for
// real-time event streaming.
//
// The returned events channel streams progress events and is closed when the
// run finishes. The errors channel carries at most one terminal error and is
// closed together with the events channel. An immediate error is returned
// when the run cannot be started at all: engine not running, unknown
// workflow, unresolvable step graph, missing agents, or the concurrent run
// limit being reached.
//
// Each run executes under a context bounded by the workflow's Timeout.
func (e *Engine) Execute(
	ctx context.Context,
	workflowName string,
	input map[string]any,
	optFns ...func(o *ExecuteOptions),
) (string, <-chan Event, <-chan error, error) {
	execOpts := ExecuteOptions{}
	for _, fn := range optFns {
		fn(&execOpts)
	}

	if !e.lifecycle.IsRunning() {
		return "", nil, nil, core.NewWorkflowError("engine is not running").
			WithContext("phase", e.lifecycle.Phase().String())
	}

	wf, ok := e.workflows.Get(workflowName)
	if !ok {
		return "", nil, nil, core.NewWorkflowError("workflow not found").
			WithContext("workflow", workflowName)
	}

	layers, err := wf.Layers()
	if err != nil {
		return "", nil, nil, err
	}

	// Resolve every step's agent up front so runs never fail mid-flight on
	// a missing registration.
	for _, step := range wf.Steps() {
		if _, ok := e.agents.Get(step.AgentID); !ok {
			return "", nil, nil, core.NewAgentError("agent not registered").
				WithContext("agent", step.AgentID).
				WithContext("step", step.Name).
				WithContext("workflow", workflowName)
		}
	}

	mode, err := e.resolveMode(execOpts.Mode, wf)
	if err != nil {
		return "", nil, nil, err
	}

	select {
	case e.runSem <- struct{}{}:
	default:
		return "", nil, nil, core.NewWorkflowError("max concurrent runs reached").
			WithContext("limit", e.config.MaxConcurrentRuns)
	}

	runID := core.NewID()
	run := &Run{
		ID:        runID,
		Workflow:  wf.Name,
		Status:    RunStatusRunning,
		Mode:      mode,
		Input:     copyMap(input),
		StartedAt: time.Now(),
	}
	if err := e.runStore.Save(run); err != nil {
		<-e.runSem
		return "", nil, nil, err
	}

	events := make(chan Event, e.config.EventBufferSize)
	errs := make(chan error, 1)

	runCtx, cancel := context.WithTimeout(ctx, wf.Timeout)

	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()

	logger := logging.ForRun(e.logger, wf.Name, runID)
	logger.Info("run started",
		"mode", string(mode),
		"steps", wf.Len(),
	)

	go func() {
		defer func() {
			e.runsMu.Lock()
			delete(e.activeRuns, runID)
			e.runsMu.Unlock()
			cancel()
			close(events)
			close(errs)
			<-e.runSem
		}()

		sendEvent(runCtx, events, Event{
			RunID:     runID,
			Workflow:  wf.Name,
			Type:      EventRunStarted,
			Timestamp: time.Now(),
		})

		output, runErr := e.runLayers(runCtx, run, logger, layers, mode, events)

		run.FinishedAt = time.Now()

		if runErr != nil {
			runErr = e.classifyRunError(runCtx, wf, runErr)
			if errors.Is(runErr, context.Canceled) {
				run.Status = RunStatusCancelled
			} else {
				run.Status = RunStatusFailed
			}
			run.Error = runErr.Error()
			if err := e.runStore.Save(run); err != nil {
				logger.Error("failed to persist run record", "error", err)
			}
			recordRun(logger, wf.Name, wf.Len(), run.FinishedAt.Sub(run.StartedAt), runErr)
			sendEvent(runCtx, events, Event{
				RunID:     runID,
				Workflow:  wf.Name,
				Type:      EventRunFailed,
				Err:       runErr.Error(),
				Timestamp: time.Now(),
			})
			errs <- runErr
			return
		}

		run.Status = RunStatusCompleted
		run.Output = output
		if err := e.runStore.Save(run); err != nil {
			logger.Error("failed to persist run record", "error", err)
		}
		recordRun(logger, wf.Name, wf.Len(), run.FinishedAt.Sub(run.StartedAt), nil)
		sendEvent(runCtx, events, Event{
			RunID:     runID,
			Workflow:  wf.Name,
			Type:      EventRunCompleted,
			Output:    output,
			Timestamp: time.Now(),
		})
	}()

	return runID, events, errs, nil
}

// ExecuteSync runs a workflow to completion and returns its collected result.
func (e *Engine) ExecuteSync(
	ctx context.Context,
	workflowName string,
	input map[string]any,
	optFns ...func(o *ExecuteOptions),
) (*Result, error) {
	start := time.Now()

	runID, events, errs, err := e.Execute(ctx, workflowName, input, optFns...)
	if err != nil {
		return nil, err
	}

	var collected []Event
	for ev := range events {
		collected = append(collected, ev)
	}

	result := &Result{
		RunID:    runID,
		Workflow: workflowName,
		Events:   collected,
		Duration: time.Since(start),
	}

	if runErr := <-errs; runErr != nil {
		return result, runErr
	}

	if run, err := e.runStore.Get(runID); err == nil {
		result.Output = run.Output
	}
	return result, nil
}

// resolveMode validates a pinned mode or derives one from the reasoner.
func (e *Engine) resolveMode(pinned reasoner.ExecutionMode, wf *workflow.Workflow) (reasoner.ExecutionMode, error) {
	switch pinned {
	case reasoner.ModeSequential, reasoner.ModeParallel, reasoner.ModeHybrid:
		return pinned, nil
	case "":
	default:
		return "", core.NewValidationError("unknown execution mode").
			WithContext("mode", string(pinned))
	}

	task := wf.Description
	if task == "" {
		task = wf.Name
	}
	return e.reasoner.RecommendExecutionMode(task, map[string]any{"steps": wf.Len()}), nil
}

// runLayers executes dependency layers in order, sharing a state map across
// steps. Sequential mode runs every step inline; parallel and hybrid modes
// run the steps of a layer concurrently bounded by MaxParallelSteps.
func (e *Engine) runLayers(
	ctx context.Context,
	run *Run,
	logger logging.Logger,
	layers [][]*workflow.Step,
	mode reasoner.ExecutionMode,
	events chan<- Event,
) (map[string]any, error) {
	state := copyMap(run.Input)
	if state == nil {
		state = make(map[string]any)
	}
	var stateMu sync.Mutex

	for _, layer := range layers {
		if mode == reasoner.ModeSequential || len(layer) == 1 {
			for _, step := range layer {
				if err := e.runStep(ctx, run, logger, step, state, &stateMu, events); err != nil {
					return nil, err
				}
			}
			continue
		}

		maxPar := e.config.MaxParallelSteps
		if maxPar > len(layer) {
			maxPar = len(layer)
		}
		sem := make(chan struct{}, maxPar)

		var wg sync.WaitGroup
		var errMu sync.Mutex
		var stepErrs []error

		for _, step := range layer {
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(st *workflow.Step) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := e.runStep(ctx, run, logger, st, state, &stateMu, events); err != nil {
					errMu.Lock()
					stepErrs = append(stepErrs, err)
					errMu.Unlock()
				}
			}(step)
		}

		wg.Wait()

		if err := ctx.Err(); err != nil && len(stepErrs) == 0 {
			return nil, err
		}
		if len(stepErrs) > 0 {
			return nil, errors.Join(stepErrs...)
		}
	}

	return state, nil
}

// runStep executes one step with the agent's retry budget. Successful output
// is merged into the shared state map; exhausted retries surface the last
// attempt's error.
func (e *Engine) runStep(
	ctx context.Context,
	run *Run,
	logger logging.Logger,
	step *workflow.Step,
	state map[string]any,
	stateMu *sync.Mutex,
	events chan<- Event,
) error {
	ag, ok := e.agents.Get(step.AgentID)
	if !ok {
		return core.NewAgentError("agent not registered").
			WithContext("agent", step.AgentID).
			WithContext("step", step.Name)
	}

	maxAttempts := ag.MaxIterations
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sendEvent(ctx, events, Event{
			RunID:     run.ID,
			Workflow:  run.Workflow,
			Step:      step.Name,
			Type:      EventStepStarted,
			Attempt:   attempt,
			Timestamp: time.Now(),
		})

		stateMu.Lock()
		input := snapshotInput(state, step.InputKeys)
		stateMu.Unlock()

		start := time.Now()
		output, err := e.executor.ExecuteStep(ctx, ag, step, input)
		dur := time.Since(start)

		if err == nil {
			stateMu.Lock()
			for k, v := range output {
				state[k] = v
			}
			stateMu.Unlock()

			recordStep(logger, step.Name, ag.Name, attempt, dur, nil)
			sendEvent(ctx, events, Event{
				RunID:     run.ID,
				Workflow:  run.Workflow,
				Step:      step.Name,
				Type:      EventStepCompleted,
				Attempt:   attempt,
				Output:    output,
				Timestamp: time.Now(),
			})
			return nil
		}

		lastErr = err
		recordStep(logger, step.Name, ag.Name, attempt, dur, err)
		sendEvent(ctx, events, Event{
			RunID:     run.ID,
			Workflow:  run.Workflow,
			Step:      step.Name,
			Type:      EventStepFailed,
			Attempt:   attempt,
			Err:       err.Error(),
			Timestamp: time.Now(),
		})

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return core.NewAgentError("step failed after retries").
		WithContext("step", step.Name).
		WithContext("agent", ag.Name).
		WithContext("attempts", maxAttempts).
		Wrap(lastErr)
}

// classifyRunError maps context termination onto domain errors so callers can
// distinguish timeouts from cancellation and step failures.
func (e *Engine) classifyRunError(ctx context.Context, wf *workflow.Workflow, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewWorkflowError("workflow run timed out").
			WithContext("workflow", wf.Name).
			WithContext("timeout", wf.Timeout.String()).
			Wrap(err)
	}
	if errors.Is(err, context.Canceled) {
		return core.NewWorkflowError("workflow run cancelled").
			WithContext("workflow", wf.Name).
			Wrap(err)
	}
	return err
}

// snapshotInput copies the state keys a step reads. Steps without declared
// input keys see the whole state.
func snapshotInput(state map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		return copyMap(state)
	}
	input := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := state[k]; ok {
			input[k] = v
		}
	}
	return input
}

// recordStep logs the outcome of one step attempt, preferring the structured
// metrics surface when the run logger provides it.
func recordStep(logger logging.Logger, step, agentName string, attempt int, dur time.Duration, err error) {
	if rec, ok := logger.(logging.MetricsRecorder); ok {
		rec.LogStepExecution(step, attempt, dur, err == nil, err)
		return
	}
	if err != nil {
		logger.Warn("step attempt failed",
			"step", step,
			"agent", agentName,
			"attempt", attempt,
			"duration_ms", dur.Milliseconds(),
			"error", err,
		)
		return
	}
	logger.Debug("step executed",
		"step", step,
		"agent", agentName,
		"attempt", attempt,
		"duration_ms", dur.Milliseconds(),
	)
}

// recordRun logs a finished run the same way.
func recordRun(logger logging.Logger, workflowName string, steps int, dur time.Duration, err error) {
	if rec, ok := logger.(logging.MetricsRecorder); ok {
		rec.LogRunExecution(workflowName, steps, dur, err == nil, err)
		return
	}
	if err != nil {
		logger.Error("run failed", "duration_ms", dur.Milliseconds(), "error", err)
		return
	}
	logger.Info("run completed", "duration_ms", dur.Milliseconds())
}

// sendEvent delivers ev unless the run context is done, in which case it
// falls back to a single non-blocking attempt so terminal events are not
// silently lost when buffer space remains.
func sendEvent(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
		select {
		case events <- ev:
		default:
		}
	}
}

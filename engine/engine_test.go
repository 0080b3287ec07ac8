package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agenticsdlc/agenticsdlc/agent"
	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/agenticsdlc/agenticsdlc/lifecycle"
	"github.com/agenticsdlc/agenticsdlc/logging"
	"github.com/agenticsdlc/agenticsdlc/reasoner"
	"github.com/agenticsdlc/agenticsdlc/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, name string, maxIterations int) *agent.Agent {
	t.Helper()
	a, err := agent.New(name, "worker", "mock-model", func(o *agent.Options) {
		o.MaxIterations = maxIterations
	})
	require.NoError(t, err)
	return a
}

func newStartedEngine(t *testing.T, fx *FuncExecutor, optFns ...func(o *Options)) *Engine {
	t.Helper()
	e := New(append([]func(o *Options){func(o *Options) { o.Executor = fx }}, optFns...)...)
	require.NoError(t, e.Start())
	return e
}

func TestEngine_ExecuteSync_SequentialChain(t *testing.T) {
	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("fetch", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"data": "raw"}, nil
	}))
	require.NoError(t, fx.Register("transform", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		require.Equal(t, "raw", in["data"])
		return map[string]any{"clean": "tidy"}, nil
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "etl", 1)))

	wf, err := workflow.NewBuilder("pipeline").
		Step("fetch", "etl", func(o *workflow.StepOptions) { o.OutputKeys = []string{"data"} }).
		Step("transform", "etl", func(o *workflow.StepOptions) {
			o.InputKeys = []string{"data"}
			o.OutputKeys = []string{"clean"}
		}).
		Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	result, err := e.ExecuteSync(context.Background(), "pipeline", map[string]any{"source": "s3"})

	require.NoError(t, err)
	assert.Equal(t, "tidy", result.Output["clean"])
	assert.Equal(t, "raw", result.Output["data"])
	assert.Equal(t, "s3", result.Output["source"])

	require.NotEmpty(t, result.Events)
	assert.Equal(t, EventRunStarted, result.Events[0].Type)
	assert.Equal(t, EventRunCompleted, result.Events[len(result.Events)-1].Type)

	run, err := e.Run(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
}

func TestEngine_RunLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LogLevelDebug,
		Format: "json",
		Output: &buf,
	})

	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("lint", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"report": "clean"}, nil
	}))

	e := newStartedEngine(t, fx, func(o *Options) { o.Logger = logger })
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "qa", 1)))

	wf, err := workflow.NewBuilder("ci").Step("lint", "qa").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	result, err := e.ExecuteSync(context.Background(), "ci", nil)
	require.NoError(t, err)

	var stepEntry, runEntry map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		switch entry["msg"] {
		case "Step execution completed":
			stepEntry = entry
		case "Workflow run completed":
			runEntry = entry
		}
	}

	require.NotNil(t, stepEntry, "step metrics entry missing")
	assert.Equal(t, result.RunID, stepEntry["run_id"])
	assert.Equal(t, "ci", stepEntry["workflow_id"])
	assert.Equal(t, "lint", stepEntry["step"])
	assert.Equal(t, true, stepEntry["success"])

	require.NotNil(t, runEntry, "run metrics entry missing")
	assert.Equal(t, result.RunID, runEntry["run_id"])
	assert.Equal(t, float64(1), runEntry["step_count"])
}

func TestEngine_Execute_RequiresRunningPhase(t *testing.T) {
	e := New()

	_, _, _, err := e.Execute(context.Background(), "anything", nil)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeWorkflow))
	assert.Contains(t, err.Error(), "not running")
}

func TestEngine_Execute_UnknownWorkflow(t *testing.T) {
	e := newStartedEngine(t, NewFuncExecutor())

	_, _, _, err := e.Execute(context.Background(), "ghost", nil)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeWorkflow))
}

func TestEngine_Execute_MissingAgent(t *testing.T) {
	e := newStartedEngine(t, NewFuncExecutor())

	wf, err := workflow.NewBuilder("lonely").Step("only", "nobody").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	_, _, _, err = e.Execute(context.Background(), "lonely", nil)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeAgent))
}

func TestEngine_StepRetrySucceedsWithinBudget(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("flaky", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return map[string]any{"ok": true}, nil
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "retrier", 3)))

	wf, err := workflow.NewBuilder("retry").Step("flaky", "retrier").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	result, err := e.ExecuteSync(context.Background(), "retry", nil)

	require.NoError(t, err)
	assert.Equal(t, true, result.Output["ok"])
	assert.Equal(t, 3, attempts)

	var failed int
	for _, ev := range result.Events {
		if ev.Type == EventStepFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestEngine_StepRetriesExhausted(t *testing.T) {
	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("doomed", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return nil, errors.New("permanent")
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "retrier", 2)))

	wf, err := workflow.NewBuilder("doomed-run").Step("doomed", "retrier").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	result, err := e.ExecuteSync(context.Background(), "doomed-run", nil)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeAgent))
	assert.Contains(t, err.Error(), "attempts=2")

	run, storeErr := e.Run(result.RunID)
	require.NoError(t, storeErr)
	assert.Equal(t, RunStatusFailed, run.Status)
}

func TestEngine_WorkflowTimeout(t *testing.T) {
	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("slow", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "sleeper", 1)))

	wf, err := workflow.NewBuilder("slow-run").
		Timeout(50 * time.Millisecond).
		Step("slow", "sleeper").
		Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	result, err := e.ExecuteSync(context.Background(), "slow-run", nil)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeWorkflow))
	assert.Contains(t, err.Error(), "timed out")

	run, storeErr := e.Run(result.RunID)
	require.NoError(t, storeErr)
	assert.Equal(t, RunStatusFailed, run.Status)
}

func TestEngine_StopRunCancels(t *testing.T) {
	started := make(chan struct{})

	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("blocking", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "blocker", 1)))

	wf, err := workflow.NewBuilder("blocked-run").Step("blocking", "blocker").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	runID, events, errs, err := e.Execute(context.Background(), "blocked-run", nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, e.StopRun(runID))

	for range events {
	}
	runErr := <-errs
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "cancelled")

	run, storeErr := e.Run(runID)
	require.NoError(t, storeErr)
	assert.Equal(t, RunStatusCancelled, run.Status)
}

func TestEngine_StopRun_UnknownRun(t *testing.T) {
	e := newStartedEngine(t, NewFuncExecutor())

	err := e.StopRun("no-such-run")

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeWorkflow))
}

func TestEngine_ParallelLayerExecution(t *testing.T) {
	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("lint", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"lint": "clean"}, nil
	}))
	require.NoError(t, fx.Register("test", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"tests": "green"}, nil
	}))
	require.NoError(t, fx.Register("release", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		require.Equal(t, "clean", in["lint"])
		require.Equal(t, "green", in["tests"])
		return map[string]any{"released": true}, nil
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "ci", 1)))

	wf, err := workflow.NewBuilder("ci-run").
		Step("lint", "ci", func(o *workflow.StepOptions) { o.OutputKeys = []string{"lint"} }).
		Step("test", "ci", func(o *workflow.StepOptions) { o.OutputKeys = []string{"tests"} }).
		Step("release", "ci", func(o *workflow.StepOptions) {
			o.InputKeys = []string{"lint", "tests"}
			o.OutputKeys = []string{"released"}
		}).
		Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	result, err := e.ExecuteSync(context.Background(), "ci-run", nil,
		func(o *ExecuteOptions) { o.Mode = reasoner.ModeParallel })

	require.NoError(t, err)
	assert.Equal(t, true, result.Output["released"])

	run, storeErr := e.Run(result.RunID)
	require.NoError(t, storeErr)
	assert.Equal(t, reasoner.ModeParallel, run.Mode)
}

func TestEngine_RejectsUnknownMode(t *testing.T) {
	fx := NewFuncExecutor()
	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "a", 1)))

	wf, err := workflow.NewBuilder("w").Step("s", "a").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	_, _, _, err = e.Execute(context.Background(), "w", nil,
		func(o *ExecuteOptions) { o.Mode = "zigzag" })

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeValidation))
}

func TestEngine_MaxConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("hold", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		close(started)
		select {
		case <-release:
			return map[string]any{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	e := newStartedEngine(t, fx, func(o *Options) {
		o.Config = Config{MaxConcurrentRuns: 1}
	})
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "holder", 1)))

	wf, err := workflow.NewBuilder("held").Step("hold", "holder").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	_, events, errs, err := e.Execute(context.Background(), "held", nil)
	require.NoError(t, err)
	<-started

	_, _, _, err = e.Execute(context.Background(), "held", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max concurrent runs")

	close(release)
	for range events {
	}
	require.NoError(t, <-errs)
}

func TestEngine_ShutdownCancelsActiveRuns(t *testing.T) {
	started := make(chan struct{})

	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("blocking", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "blocker", 1)))

	wf, err := workflow.NewBuilder("blocked").Step("blocking", "blocker").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	_, events, errs, err := e.Execute(context.Background(), "blocked", nil)
	require.NoError(t, err)
	<-started

	require.NoError(t, e.Shutdown())
	assert.Equal(t, lifecycle.PhaseShutdown, e.Phase())

	for range events {
	}
	require.Error(t, <-errs)

	_, _, _, err = e.Execute(context.Background(), "blocked", nil)
	require.Error(t, err)
}

func TestEngine_PauseRejectsNewRuns(t *testing.T) {
	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("s", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "a", 1)))

	wf, err := workflow.NewBuilder("w").Step("s", "a").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	require.NoError(t, e.Pause())
	_, _, _, err = e.Execute(context.Background(), "w", nil)
	require.Error(t, err)

	require.NoError(t, e.Resume())
	_, err = e.ExecuteSync(context.Background(), "w", nil)
	require.NoError(t, err)
}

func TestEngine_RunsListing(t *testing.T) {
	fx := NewFuncExecutor()
	require.NoError(t, fx.Register("s", func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}))

	e := newStartedEngine(t, fx)
	require.NoError(t, e.RegisterAgent(newTestAgent(t, "a", 1)))

	wf, err := workflow.NewBuilder("w").Step("s", "a").Build()
	require.NoError(t, err)
	require.NoError(t, e.RegisterWorkflow(wf))

	_, err = e.ExecuteSync(context.Background(), "w", nil)
	require.NoError(t, err)
	_, err = e.ExecuteSync(context.Background(), "w", nil)
	require.NoError(t, err)

	runs, err := e.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

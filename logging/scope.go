package logging

import "time"

// MetricsRecorder is an optional extension of Logger for recording structured
// execution metrics. The engine and executors upgrade their configured logger
// to this interface when the implementation provides it; RunLogger does.
type MetricsRecorder interface {
	LogStepExecution(step string, attempt int, dur time.Duration, success bool, err error)
	LogModelCall(model string, tokens int, dur time.Duration, success bool, err error)
	LogRunExecution(workflow string, steps int, dur time.Duration, success bool, err error)
}

// ForRun derives a logger scoped to one workflow run. RunLogger instances are
// cloned with the identifiers attached as contextual fields; any other Logger
// is wrapped so workflow_id and run_id still reach every entry.
func ForRun(base Logger, workflowID, runID string) Logger {
	if rl, ok := base.(*RunLogger); ok {
		return rl.WithRun(workflowID, runID)
	}
	return &runScope{base: base, workflowID: workflowID, runID: runID}
}

// WithComponent tags a RunLogger with a logical component name. Other Logger
// implementations are returned unchanged.
func WithComponent(base Logger, component string) Logger {
	if rl, ok := base.(*RunLogger); ok {
		return rl.WithComponent(component)
	}
	return base
}

// runScope prepends run identifiers to the key/value args of every entry.
type runScope struct {
	base       Logger
	workflowID string
	runID      string
}

func (l *runScope) with(args []any) []any {
	all := make([]any, 0, len(args)+4)
	all = append(all, "workflow_id", l.workflowID, "run_id", l.runID)
	return append(all, args...)
}

// Debug logs a debug message.
func (l *runScope) Debug(msg string, args ...any) { l.base.Debug(msg, l.with(args)...) }

// Info logs an informational message.
func (l *runScope) Info(msg string, args ...any) { l.base.Info(msg, l.with(args)...) }

// Warn logs a warning message.
func (l *runScope) Warn(msg string, args ...any) { l.base.Warn(msg, l.with(args)...) }

// Error logs an error message.
func (l *runScope) Error(msg string, args ...any) { l.base.Error(msg, l.with(args)...) }

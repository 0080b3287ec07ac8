package engine

import "time"

// EventType classifies the progress events emitted during a workflow run.
type EventType string

const (
	// EventRunStarted is emitted once when a run begins executing.
	EventRunStarted EventType = "run_started"
	// EventStepStarted is emitted before each step attempt.
	EventStepStarted EventType = "step_started"
	// EventStepCompleted is emitted when a step attempt succeeds.
	EventStepCompleted EventType = "step_completed"
	// EventStepFailed is emitted when a step attempt fails. The step may
	// still be retried on a subsequent attempt.
	EventStepFailed EventType = "step_failed"
	// EventRunCompleted is emitted once when all layers finished successfully.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed is emitted when the run terminates with an error.
	EventRunFailed EventType = "run_failed"
)

// Event is a single progress notification streamed to Execute callers.
type Event struct {
	RunID     string         `json:"run_id"`
	Workflow  string         `json:"workflow"`
	Step      string         `json:"step,omitempty"`
	Type      EventType      `json:"type"`
	Attempt   int            `json:"attempt,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	Err       string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Result aggregates the outcome of a synchronous run.
type Result struct {
	RunID    string         `json:"run_id"`
	Workflow string         `json:"workflow"`
	Output   map[string]any `json:"output,omitempty"`
	Events   []Event        `json:"events,omitempty"`
	Duration time.Duration  `json:"duration"`
}

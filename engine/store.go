package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/agenticsdlc/agenticsdlc/reasoner"
)

// RunStatus describes where a run is in its lifecycle.
type RunStatus string

const (
	// RunStatusRunning means the run is currently executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted means all steps finished successfully.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed means the run terminated with an error.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled means the run was stopped before completion.
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is the persisted record of a single workflow execution.
type Run struct {
	ID         string                 `json:"id"`
	Workflow   string                 `json:"workflow"`
	Status     RunStatus              `json:"status"`
	Mode       reasoner.ExecutionMode `json:"mode"`
	Input      map[string]any         `json:"input,omitempty"`
	Output     map[string]any         `json:"output,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at,omitempty"`
}

// Clone returns a deep-enough copy so callers cannot mutate stored state.
func (r *Run) Clone() *Run {
	clone := *r
	clone.Input = copyMap(r.Input)
	clone.Output = copyMap(r.Output)
	return &clone
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RunStore persists run records. Implementations must be safe for
// concurrent use.
type RunStore interface {
	Save(run *Run) error
	Get(runID string) (*Run, error)
	List() ([]*Run, error)
}

// InMemoryRunStore is a volatile RunStore implementation storing runs in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo setups. Each returned run is cloned to prevent
// external mutation of internal state.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemoryRunStore constructs an empty in-memory run store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]*Run)}
}

// Save stores a clone of the provided run snapshot.
func (s *InMemoryRunStore) Save(run *Run) error {
	if run == nil || run.ID == "" {
		return core.NewValidationError("run must have an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

// Get returns an existing run (clone) by id.
func (s *InMemoryRunStore) Get(runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, core.NewWorkflowError("run not found").WithContext("run_id", runID)
	}
	return run.Clone(), nil
}

// List returns clones of all stored runs ordered by start time.
func (s *InMemoryRunStore) List() ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/agenticsdlc/agenticsdlc/logging"
)

// Phase is a named lifecycle state of a managed component.
type Phase string

const (
	// PhaseInitialized is the phase every Manager starts in.
	PhaseInitialized Phase = "initialized"
	// PhaseStarted indicates the component has been started but is not yet
	// processing work.
	PhaseStarted Phase = "started"
	// PhaseRunning indicates the component is actively processing work.
	PhaseRunning Phase = "running"
	// PhasePaused indicates processing is temporarily suspended.
	PhasePaused Phase = "paused"
	// PhaseStopped indicates processing has ended; only shutdown remains.
	PhaseStopped Phase = "stopped"
	// PhaseShutdown is the terminal phase with no outgoing transitions.
	PhaseShutdown Phase = "shutdown"
	// PhaseError indicates the component failed; it may still be stopped or
	// shut down.
	PhaseError Phase = "error"
)

// String returns the phase name.
func (p Phase) String() string { return string(p) }

// transitions is the fixed adjacency table validated by TransitionTo.
// Self-transitions are deliberately absent: re-entering the current phase is
// an invalid transition, so phase callbacks fire at most once per entry.
var transitions = map[Phase][]Phase{
	PhaseInitialized: {PhaseStarted, PhaseShutdown, PhaseError},
	PhaseStarted:     {PhaseRunning, PhaseStopped, PhaseShutdown, PhaseError},
	PhaseRunning:     {PhasePaused, PhaseStopped, PhaseShutdown, PhaseError},
	PhasePaused:      {PhaseRunning, PhaseStopped, PhaseShutdown, PhaseError},
	PhaseStopped:     {PhaseShutdown},
	PhaseError:       {PhaseStopped, PhaseShutdown},
	PhaseShutdown:    {},
}

// Callback is invoked when its registered phase is entered. A non-nil return
// is reported to the TransitionTo caller but never rolls the transition back.
type Callback func() error

// Manager tracks the current lifecycle phase of a single component, validates
// transitions against a fixed table, and invokes registered callbacks on
// phase entry. All methods are safe for concurrent use; transitions are
// serialized so only one is in flight at a time.
type Manager struct {
	mu        sync.Mutex
	phase     Phase
	callbacks map[Phase][]Callback
	logger    logging.Logger
}

// Options configures a Manager.
type Options struct {
	// Logger receives callback failure reports. Defaults to NoOpLogger.
	Logger logging.Logger
}

// NewManager constructs a Manager in the initialized phase.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		phase:     PhaseInitialized,
		callbacks: make(map[Phase][]Callback),
		logger:    opts.Logger,
	}
}

// Phase returns the current phase without side effects.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// IsRunning reports whether the component is actively processing work.
func (m *Manager) IsRunning() bool { return m.Phase() == PhaseRunning }

// IsStopped reports whether the component reached a terminal phase.
func (m *Manager) IsStopped() bool {
	p := m.Phase()
	return p == PhaseStopped || p == PhaseShutdown
}

// OnPhase appends cb to the invocation list for the given phase. All
// callbacks registered for a phase run in registration order each time that
// phase is entered.
func (m *Manager) OnPhase(phase Phase, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[phase] = append(m.callbacks[phase], cb)
}

// TransitionTo moves the manager into the target phase.
//
// The edge from the current phase is validated against the transition table;
// an invalid edge (including a self-transition) returns a validation error
// and leaves the state unchanged. On a valid edge the phase is updated first
// and the new phase's callbacks then run in registration order. A failing
// callback does not undo the transition: its error is logged and joined into
// the returned error so failures are never silently swallowed.
func (m *Manager) TransitionTo(target Phase) error {
	m.mu.Lock()

	allowed, known := transitions[m.phase]
	if !known {
		current := m.phase
		m.mu.Unlock()
		return core.NewValidationError("unknown lifecycle phase").
			WithContext("phase", current.String())
	}

	valid := false
	for _, next := range allowed {
		if next == target {
			valid = true
			break
		}
	}
	if !valid {
		current := m.phase
		m.mu.Unlock()
		return core.NewValidationError("invalid lifecycle transition").
			WithContext("from", current.String()).
			WithContext("to", target.String())
	}

	m.phase = target
	cbs := append([]Callback(nil), m.callbacks[target]...)
	m.mu.Unlock()

	var cbErrs []error
	for _, cb := range cbs {
		if err := cb(); err != nil {
			m.logger.Error("lifecycle callback failed", "phase", target.String(), "error", err)
			cbErrs = append(cbErrs, err)
		}
	}
	if len(cbErrs) > 0 {
		return fmt.Errorf("callbacks failed entering phase %s: %w", target, errors.Join(cbErrs...))
	}

	return nil
}

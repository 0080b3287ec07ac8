package workflow

import (
	"sort"
	"sync"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// Registry is a process-local name→workflow store safe for concurrent access.
// It backs routing decisions (candidate workflow names) and engine lookups.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewRegistry constructs an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{workflows: make(map[string]*Workflow)}
}

// Register adds a workflow to the registry.
func (r *Registry) Register(w *Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workflows[w.Name]; exists {
		return core.NewValidationError("workflow already registered").
			WithContext("workflow", w.Name)
	}
	r.workflows[w.Name] = w
	return nil
}

// Get retrieves a registered workflow by name.
func (r *Registry) Get(name string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[name]
	return w, ok
}

// Names returns the sorted names of all registered workflows.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

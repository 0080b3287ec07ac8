package agent

import (
	"sort"
	"sync"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// Registry is a process-local name→agent store safe for concurrent access.
// Agents are registered under their Name; registration of a duplicate name is
// rejected so step references stay unambiguous.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register adds an agent to the registry.
func (r *Registry) Register(a *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.Name]; exists {
		return core.NewValidationError("agent already registered").
			WithContext("agent", a.Name)
	}
	r.agents[a.Name] = a
	return nil
}

// Get retrieves a registered agent by name.
func (r *Registry) Get(name string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Names returns the sorted names of all registered agents.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

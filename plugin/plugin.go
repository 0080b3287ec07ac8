package plugin

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/agenticsdlc/agenticsdlc/config"
	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/agenticsdlc/agenticsdlc/logging"
)

// Metadata identifies a plugin to the registry and to operators.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Plugin is an optional extension initialized against the shared
// configuration. Implementations must tolerate Close being called even when
// Init failed or was never run.
type Plugin interface {
	// Metadata returns the plugin's identity. Name must be non-empty and
	// stable across calls.
	Metadata() Metadata

	// Init prepares the plugin for use. It is called once by InitAll.
	Init(cfg *config.Config) error

	// Close releases the plugin's resources.
	Close() error
}

// Options configures a Registry.
type Options struct {
	// Logger receives plugin failure reports. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry holds registered plugins and drives their init/close cycle.
// Plugin code is untrusted: panics during Init and Close are recovered and
// reported as plugin errors instead of crashing the host.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
	logger  logging.Logger
}

// NewRegistry constructs an empty plugin registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		plugins: make(map[string]Plugin),
		logger:  opts.Logger,
	}
}

// Register adds a plugin under its metadata name. Duplicate names are rejected.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return core.NewValidationError("plugin must be non-nil")
	}

	name := p.Metadata().Name
	if name == "" {
		return core.NewValidationError("plugin name must be non-empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return core.NewPluginError("plugin already registered").
			WithContext("plugin", name)
	}
	r.plugins[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// InitAll initializes every registered plugin in registration order. A
// failing plugin does not block the others; all failures are joined into the
// returned error.
func (r *Registry) InitAll(cfg *config.Config) error {
	r.mu.RLock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	r.mu.RUnlock()

	var errs []error
	for _, name := range order {
		p, ok := r.Get(name)
		if !ok {
			continue
		}
		if err := r.safeInit(p, cfg); err != nil {
			r.logger.Error("plugin init failed", "plugin", name, "error", err)
			errs = append(errs, err)
			continue
		}
		r.logger.Debug("plugin initialized", "plugin", name, "version", p.Metadata().Version)
	}
	return errors.Join(errs...)
}

// CloseAll closes every registered plugin in reverse registration order.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	r.mu.RUnlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		p, ok := r.Get(order[i])
		if !ok {
			continue
		}
		if err := r.safeClose(p); err != nil {
			r.logger.Error("plugin close failed", "plugin", order[i], "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) safeInit(p Plugin, cfg *config.Config) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = core.NewPluginError("plugin panicked during init").
				WithContext("plugin", p.Metadata().Name).
				Wrap(fmt.Errorf("%v\n%s", rec, debug.Stack()))
		}
	}()

	if initErr := p.Init(cfg); initErr != nil {
		return core.NewPluginError("plugin init failed").
			WithContext("plugin", p.Metadata().Name).
			Wrap(initErr)
	}
	return nil
}

func (r *Registry) safeClose(p Plugin) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = core.NewPluginError("plugin panicked during close").
				WithContext("plugin", p.Metadata().Name).
				Wrap(fmt.Errorf("%v\n%s", rec, debug.Stack()))
		}
	}()

	if closeErr := p.Close(); closeErr != nil {
		return core.NewPluginError("plugin close failed").
			WithContext("plugin", p.Metadata().Name).
			Wrap(closeErr)
	}
	return nil
}

// Package agenticsdlc provides a high-level façade over the workflow engine
// and its supporting services (configuration, lifecycle, reasoning, plugins
// & logging) enabling rapid construction of agent-driven delivery pipelines.
// Most applications interact with this package by:
//  1. Creating an instance via New() (optionally overriding defaults)
//  2. Registering agents and workflows
//  3. Starting the instance and executing workflows asynchronously
//     (Execute) or synchronously (ExecuteSync)
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a real step executor,
// durable run storage and a structured logger.
package agenticsdlc

import (
	"context"

	"github.com/agenticsdlc/agenticsdlc/agent"
	"github.com/agenticsdlc/agenticsdlc/config"
	"github.com/agenticsdlc/agenticsdlc/engine"
	"github.com/agenticsdlc/agenticsdlc/lifecycle"
	"github.com/agenticsdlc/agenticsdlc/logging"
	"github.com/agenticsdlc/agenticsdlc/plugin"
	"github.com/agenticsdlc/agenticsdlc/reasoner"
	"github.com/agenticsdlc/agenticsdlc/workflow"
)

// Options configures an AgenticSDLC instance.
type Options struct {
	// Config supplies layered configuration. Defaults to a fresh Config
	// built from defaults and environment variables.
	Config *config.Config

	// ConfigPath optionally points at a YAML or JSON configuration file
	// loaded when Config is not supplied directly.
	ConfigPath string

	// EngineConfig overrides the engine's operational parameters. When left
	// zero the values are read from Config (engine.max_concurrent_runs,
	// engine.max_parallel_steps, engine.event_buffer_size).
	EngineConfig engine.Config

	// Executor carries out workflow steps. Defaults to an empty FuncExecutor.
	Executor engine.Executor

	// RunStore persists run records. Defaults to an in-memory store.
	RunStore engine.RunStore

	// Logger provides structured logging. When nil a slog-backed logger is
	// built from logging.level / logging.format in Config.
	Logger logging.Logger
}

// AgenticSDLC is the high-level façade aggregating the engine, configuration,
// reasoner and plugin registry.
type AgenticSDLC struct {
	cfg     *config.Config
	engine  *engine.Engine
	plugins *plugin.Registry
	logger  logging.Logger
}

// New creates an AgenticSDLC instance with optional overrides. Any unset
// dependency is initialized with a development-friendly default.
func New(optFns ...func(o *Options)) (*AgenticSDLC, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.New(func(o *config.Options) {
			o.Path = opts.ConfigPath
		})
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSlogLogger(
			levelFromString(cfg.GetString("logging.level", "info")),
			cfg.GetString("logging.format", "json"),
			false,
		)
	}

	engineCfg := opts.EngineConfig
	if engineCfg == (engine.Config{}) {
		engineCfg = engine.Config{
			MaxConcurrentRuns: cfg.GetInt("engine.max_concurrent_runs", engine.DefaultConfig.MaxConcurrentRuns),
			MaxParallelSteps:  cfg.GetInt("engine.max_parallel_steps", engine.DefaultConfig.MaxParallelSteps),
			EventBufferSize:   cfg.GetInt("engine.event_buffer_size", engine.DefaultConfig.EventBufferSize),
		}
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = engineCfg
		if opts.Executor != nil {
			o.Executor = opts.Executor
		}
		if opts.RunStore != nil {
			o.RunStore = opts.RunStore
		}
		o.Logger = logging.WithComponent(logger, "engine")
	})

	plugins := plugin.NewRegistry(func(o *plugin.Options) {
		o.Logger = logging.WithComponent(logger, "plugins")
	})

	return &AgenticSDLC{
		cfg:     cfg,
		engine:  eng,
		plugins: plugins,
		logger:  logger,
	}, nil
}

func levelFromString(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

// Config exposes the shared configuration.
func (s *AgenticSDLC) Config() *config.Config { return s.cfg }

// Engine exposes the underlying workflow engine.
func (s *AgenticSDLC) Engine() *engine.Engine { return s.engine }

// Plugins exposes the plugin registry.
func (s *AgenticSDLC) Plugins() *plugin.Registry { return s.plugins }

// Reasoner exposes the reasoner for task analysis and routing.
func (s *AgenticSDLC) Reasoner() *reasoner.Reasoner { return s.engine.Reasoner() }

// Lifecycle exposes the engine's phase machine.
func (s *AgenticSDLC) Lifecycle() *lifecycle.Manager { return s.engine.Lifecycle() }

// CreateAgent constructs an agent descriptor and registers it in one call.
func (s *AgenticSDLC) CreateAgent(
	name, role, modelName string,
	optFns ...func(o *agent.Options),
) (*agent.Agent, error) {
	a, err := agent.New(name, role, modelName, optFns...)
	if err != nil {
		return nil, err
	}
	if err := s.engine.RegisterAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// RegisterAgent adds an existing agent descriptor to the engine.
func (s *AgenticSDLC) RegisterAgent(a *agent.Agent) error { return s.engine.RegisterAgent(a) }

// RegisterWorkflow adds a workflow definition to the engine.
func (s *AgenticSDLC) RegisterWorkflow(w *workflow.Workflow) error {
	return s.engine.RegisterWorkflow(w)
}

// Start initializes all registered plugins and brings the engine to the
// running phase. Plugin failures abort the start.
func (s *AgenticSDLC) Start() error {
	if err := s.plugins.InitAll(s.cfg); err != nil {
		return err
	}
	return s.engine.Start()
}

// Pause suspends acceptance of new runs.
func (s *AgenticSDLC) Pause() error { return s.engine.Pause() }

// Resume returns a paused instance to the running phase.
func (s *AgenticSDLC) Resume() error { return s.engine.Resume() }

// Stop cancels in-flight runs and moves the engine to the stopped phase.
func (s *AgenticSDLC) Stop() error { return s.engine.Stop() }

// Shutdown closes all plugins and moves the engine to its terminal phase.
// Plugin close failures are reported but do not prevent the shutdown.
func (s *AgenticSDLC) Shutdown() error {
	if err := s.plugins.CloseAll(); err != nil {
		s.logger.Error("plugin shutdown reported failures", "error", err)
	}
	return s.engine.Shutdown()
}

// Execute starts a workflow run asynchronously, returning the run ID plus
// event and error channels.
func (s *AgenticSDLC) Execute(
	ctx context.Context,
	workflowName string,
	input map[string]any,
	optFns ...func(o *engine.ExecuteOptions),
) (string, <-chan engine.Event, <-chan error, error) {
	return s.engine.Execute(ctx, workflowName, input, optFns...)
}

// ExecuteSync runs a workflow to completion and returns its collected result.
func (s *AgenticSDLC) ExecuteSync(
	ctx context.Context,
	workflowName string,
	input map[string]any,
	optFns ...func(o *engine.ExecuteOptions),
) (*engine.Result, error) {
	return s.engine.ExecuteSync(ctx, workflowName, input, optFns...)
}

// RouteTask scores the registered workflows against a task description and
// returns the best match. An instance without workflows yields a zero
// confidence result rather than an error.
func (s *AgenticSDLC) RouteTask(task string) reasoner.RouteResult {
	return s.engine.Reasoner().RouteTask(task, s.engine.Workflows().Names())
}

// DetectDomain classifies a task into a delivery domain (frontend, backend,
// devops, ...) using the reasoner's domain registry.
func (s *AgenticSDLC) DetectDomain(task string) reasoner.DomainDetectionResult {
	return s.engine.Reasoner().DetectDomain(task, nil)
}

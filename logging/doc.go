// Package logging provides a minimal logging interface and adapters for the SDK.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, lifecycle manager and plugins use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping go.uber.org/zap
//   - RunLogger with contextual run fields and MetricsRecorder helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// All adapters share one contract: variadic args are alternating key/value
// pairs attached as structured fields. ForRun scopes any Logger to a single
// workflow run.
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging

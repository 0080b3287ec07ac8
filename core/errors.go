package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies an Error into one of the SDK's failure categories. The set
// is closed; callers switch on codes (or use HasCode) rather than matching
// message text.
type Code string

const (
	// CodeConfiguration indicates a malformed or missing configuration
	// source or an invalid configuration value. Never auto-recovered.
	CodeConfiguration Code = "configuration"
	// CodeValidation indicates a violated data-model invariant (duplicate
	// step name, missing required field, bad enum value).
	CodeValidation Code = "validation"
	// CodeAgent indicates an agent construction or execution failure. The
	// engine may retry these up to the agent's iteration budget.
	CodeAgent Code = "agent"
	// CodeWorkflow indicates a workflow-level failure: step failure after
	// retries, dependency cycle, or run timeout.
	CodeWorkflow Code = "workflow"
	// CodePlugin indicates a plugin failed to load, initialize, or execute.
	CodePlugin Code = "plugin"
	// CodeModel indicates a model provider call failed.
	CodeModel Code = "model"
)

// Error is the common error type shared by every package in the SDK so
// callers can handle "any SDK error" uniformly. It carries a human-readable
// message plus an optional structured context map for machine-readable
// diagnostics. Error values wrap an optional cause and participate in
// errors.Is / errors.As chains.
type Error struct {
	Code    Code
	Message string
	Context map[string]any
	Err     error
}

// NewError constructs an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf constructs an Error with a formatted message.
func NewErrorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithContext attaches a key/value diagnostic to the error and returns the
// error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap records the underlying cause and returns the error for chaining.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Error renders the message followed by sorted context pairs, e.g.
// "duplicate step name (step=compile, workflow=build)".
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// HasCode reports whether err (or any error it wraps) is an *Error carrying
// the given code.
func HasCode(err error, code Code) bool {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.Code == code
	}
	return false
}

// Convenience constructors for the individual categories.

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string) *Error { return NewError(CodeConfiguration, message) }

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error { return NewError(CodeValidation, message) }

// NewAgentError creates an agent error.
func NewAgentError(message string) *Error { return NewError(CodeAgent, message) }

// NewWorkflowError creates a workflow error.
func NewWorkflowError(message string) *Error { return NewError(CodeWorkflow, message) }

// NewPluginError creates a plugin error.
func NewPluginError(message string) *Error { return NewError(CodePlugin, message) }

// NewModelError creates a model error.
func NewModelError(message string) *Error { return NewError(CodeModel, message) }

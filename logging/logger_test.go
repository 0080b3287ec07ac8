package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestRunLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "json", Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn message", entries[0]["msg"])
	assert.Equal(t, "error message", entries[1]["msg"])
}

func TestRunLogger_KeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	logger.Info("run started", "run_id", "abc-123", "workflow", "ci-pipeline")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "run started", entries[0]["msg"])
	assert.Equal(t, "abc-123", entries[0]["run_id"])
	assert.Equal(t, "ci-pipeline", entries[0]["workflow"])
}

func TestForRun_ScopesRunLogger(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	scoped := ForRun(base, "deploy-release", "run-7")
	scoped.Info("step started", "step", "lint")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "deploy-release", entries[0]["workflow_id"])
	assert.Equal(t, "run-7", entries[0]["run_id"])
	assert.Equal(t, "lint", entries[0]["step"])

	_, ok := scoped.(MetricsRecorder)
	assert.True(t, ok, "scoped RunLogger keeps its metrics surface")
}

type captureLogger struct {
	msgs []string
	args [][]any
}

func (c *captureLogger) record(msg string, args []any) {
	c.msgs = append(c.msgs, msg)
	c.args = append(c.args, args)
}

func (c *captureLogger) Debug(msg string, args ...any) { c.record(msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.record(msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.record(msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.record(msg, args) }

func TestForRun_WrapsPlainLogger(t *testing.T) {
	base := &captureLogger{}

	scoped := ForRun(base, "deploy-release", "run-7")
	scoped.Warn("step attempt failed", "step", "test")

	require.Len(t, base.msgs, 1)
	assert.Equal(t, "step attempt failed", base.msgs[0])
	assert.Equal(t, []any{"workflow_id", "deploy-release", "run_id", "run-7", "step", "test"}, base.args[0])
}

func TestWithComponent_PassesThroughPlainLogger(t *testing.T) {
	base := &captureLogger{}
	assert.Same(t, base, WithComponent(base, "engine"))

	var buf bytes.Buffer
	rl := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})
	WithComponent(rl, "engine").Info("run started")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "engine", entries[0]["component"])
}

func TestRunLogger_ContextualFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	logger.WithComponent("engine").
		WithRun("deploy-release", "run-1").
		WithContext("attempt", 2).
		Info("step started")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "engine", entries[0]["component"])
	assert.Equal(t, "deploy-release", entries[0]["workflow_id"])
	assert.Equal(t, "run-1", entries[0]["run_id"])
	assert.Equal(t, float64(2), entries[0]["attempt"])
}

func TestRunLogger_WithContextDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	_ = logger.WithContext("child_only", true)
	logger.Info("parent entry")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0], "child_only")
}

func TestRunLogger_LogStepExecution(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	logger.LogStepExecution("lint", 1, 25*time.Millisecond, true, nil)
	logger.LogStepExecution("test", 3, 40*time.Millisecond, false, errors.New("flaky suite"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Step execution completed", entries[0]["msg"])
	assert.Equal(t, "lint", entries[0]["step"])
	assert.Equal(t, true, entries[0]["success"])
	assert.Equal(t, "Step execution failed", entries[1]["msg"])
	assert.Equal(t, "flaky suite", entries[1]["error"])
}

func TestRunLogger_LogModelCall(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	logger.LogModelCall("gpt-4o-mini", 512, 300*time.Millisecond, true, nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Model call completed", entries[0]["msg"])
	assert.Equal(t, "gpt-4o-mini", entries[0]["model"])
	assert.Equal(t, float64(512), entries[0]["token_count"])
}

func TestZapAdapter(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	logger := NewZapAdapter(zap.New(core))

	logger.Info("run started", "workflow", "deploy-release")
	logger.Error("run failed", "error", "boom")

	entries := observed.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "run started", entries[0].Message)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "deploy-release", entries[0].ContextMap()["workflow"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNoOpLoggerSatisfiesInterface(t *testing.T) {
	var logger Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		logger.Debug("d")
		logger.Info("i")
		logger.Warn("w")
		logger.Error("e")
	})
}

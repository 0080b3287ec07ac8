package agent

import (
	"testing"

	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	a, err := New("dev-1", "developer", "gpt-4o")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "dev-1", a.Name)
	assert.Equal(t, "developer", a.Role)
	assert.Equal(t, "gpt-4o", a.ModelName)
	assert.Equal(t, DefaultMaxIterations, a.MaxIterations)
	assert.NotNil(t, a.Metadata)
}

func TestNew_Options(t *testing.T) {
	a, err := New("reviewer", "qa", "claude-sonnet", func(o *Options) {
		o.SystemPrompt = "You review diffs."
		o.Tools = []string{"git_diff", "lint"}
		o.MaxIterations = 3
	})
	require.NoError(t, err)

	assert.Equal(t, "You review diffs.", a.SystemPrompt)
	assert.Equal(t, []string{"git_diff", "lint"}, a.Tools)
	assert.Equal(t, 3, a.MaxIterations)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "developer", "gpt-4o")
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeValidation))

	_, err = New("dev-1", "developer", "")
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeValidation))

	_, err = New("dev-1", "developer", "gpt-4o", func(o *Options) { o.MaxIterations = 0 })
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeValidation))
}

func TestNew_StableID(t *testing.T) {
	a, err := New("dev-1", "developer", "gpt-4o")
	require.NoError(t, err)

	id := a.ID
	a.Metadata["team"] = "platform"

	assert.Equal(t, id, a.ID, "metadata changes must not affect identity")
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	a, err := New("dev-1", "developer", "gpt-4o")
	require.NoError(t, err)
	require.NoError(t, r.Register(a))

	got, ok := r.Get("dev-1")
	assert.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()

	a1, err := New("dev-1", "developer", "gpt-4o")
	require.NoError(t, err)
	a2, err := New("dev-1", "tester", "claude-sonnet")
	require.NoError(t, err)

	require.NoError(t, r.Register(a1))
	err = r.Register(a2)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodeValidation))

	got, _ := r.Get("dev-1")
	assert.Equal(t, "developer", got.Role, "existing registration unchanged")
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		a, err := New(name, "role", "model")
		require.NoError(t, err)
		require.NoError(t, r.Register(a))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

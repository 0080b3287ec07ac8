package plugin

import (
	"errors"
	"testing"

	"github.com/agenticsdlc/agenticsdlc/config"
	"github.com/agenticsdlc/agenticsdlc/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	meta      Metadata
	initErr   error
	closeErr  error
	initPanic bool
	inits     int
	closes    int
}

func (p *fakePlugin) Metadata() Metadata { return p.meta }

func (p *fakePlugin) Init(cfg *config.Config) error {
	p.inits++
	if p.initPanic {
		panic("init blew up")
	}
	return p.initErr
}

func (p *fakePlugin) Close() error {
	p.closes++
	return p.closeErr
}

func newFakePlugin(name string) *fakePlugin {
	return &fakePlugin{meta: Metadata{Name: name, Version: "1.0.0"}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New()
	require.NoError(t, err)
	return cfg
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := newFakePlugin("metrics")

	require.NoError(t, r.Register(p))

	got, ok := r.Get("metrics")
	require.True(t, ok)
	assert.Equal(t, "metrics", got.Metadata().Name)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakePlugin("metrics")))

	err := r.Register(newFakePlugin("metrics"))

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodePlugin))
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&fakePlugin{}))
}

func TestRegistry_InitAll(t *testing.T) {
	r := NewRegistry()
	a := newFakePlugin("a")
	b := newFakePlugin("b")
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	require.NoError(t, r.InitAll(testConfig(t)))

	assert.Equal(t, 1, a.inits)
	assert.Equal(t, 1, b.inits)
}

func TestRegistry_InitAllContinuesPastFailures(t *testing.T) {
	r := NewRegistry()
	bad := newFakePlugin("bad")
	bad.initErr = errors.New("no backend")
	good := newFakePlugin("good")
	require.NoError(t, r.Register(bad))
	require.NoError(t, r.Register(good))

	err := r.InitAll(testConfig(t))

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.CodePlugin))
	assert.Equal(t, 1, good.inits)
}

func TestRegistry_InitAllRecoversPanics(t *testing.T) {
	r := NewRegistry()
	panicky := newFakePlugin("panicky")
	panicky.initPanic = true
	good := newFakePlugin("good")
	require.NoError(t, r.Register(panicky))
	require.NoError(t, r.Register(good))

	err := r.InitAll(testConfig(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, good.inits)
}

func TestRegistry_CloseAllReverseOrder(t *testing.T) {
	r := NewRegistry()
	var closed []string
	require.NoError(t, r.Register(&orderedPlugin{name: "first", closed: &closed}))
	require.NoError(t, r.Register(&orderedPlugin{name: "second", closed: &closed}))

	require.NoError(t, r.CloseAll())

	assert.Equal(t, []string{"second", "first"}, closed)
}

type orderedPlugin struct {
	name   string
	closed *[]string
}

func (p *orderedPlugin) Metadata() Metadata            { return Metadata{Name: p.name} }
func (p *orderedPlugin) Init(cfg *config.Config) error { return nil }
func (p *orderedPlugin) Close() error {
	*p.closed = append(*p.closed, p.name)
	return nil
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakePlugin("b")))
	require.NoError(t, r.Register(newFakePlugin("a")))

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

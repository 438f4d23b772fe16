package fixture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constFactory(v any) Factory {
	return FactoryFunc(func(Handle) (any, error) { return v, nil })
}

func TestRegistry_LookupReturnsSameDescriptor(t *testing.T) {
	reg := NewRegistry()
	names := []string{"client", "project", "tmp_path"}
	registered := make(map[string]*Descriptor)
	for _, name := range names {
		d := &Descriptor{Name: name, Scope: ScopeSession, Factory: constFactory(name)}
		require.NoError(t, reg.Register(d))
		registered[name] = d
	}

	for _, name := range names {
		got, err := reg.Lookup(name)
		require.NoError(t, err)
		assert.Same(t, registered[name], got)
	}
	assert.Equal(t, []string{"client", "project", "tmp_path"}, reg.Names())
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Descriptor{Name: "client", Scope: ScopeSession, Factory: constFactory(1)}))

	err := reg.Register(&Descriptor{Name: "client", Scope: ScopeTest, Factory: constFactory(2)})
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "client", dup.Name)

	// the first registration wins
	d, err := reg.Lookup("client")
	require.NoError(t, err)
	assert.Equal(t, ScopeSession, d.Scope)
}

func TestRegistry_UnknownFixture(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup("missing")

	var unknown *UnknownFixtureError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
}

func TestRegistry_RejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name string
		d    *Descriptor
		msg  string
	}{
		{name: "nil descriptor", d: nil, msg: "nil"},
		{name: "empty name", d: &Descriptor{Scope: ScopeTest, Factory: constFactory(1)}, msg: "'name'"},
		{name: "invalid scope", d: &Descriptor{Name: "x", Factory: constFactory(1)}, msg: "invalid scope"},
		{name: "nil factory", d: &Descriptor{Name: "x", Scope: ScopeTest}, msg: "no factory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.d)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRegistry_Seal(t *testing.T) {
	reg := NewRegistry()
	reg.Seal()
	assert.True(t, reg.Sealed())

	err := reg.Register(&Descriptor{Name: "late", Scope: ScopeTest, Factory: constFactory(1)})
	assert.ErrorIs(t, err, ErrRegistrySealed)

	err = reg.RegisterHelper("late", func(Handle, ...any) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrRegistrySealed)
}

func TestRegistry_Helpers(t *testing.T) {
	reg := NewRegistry()
	fn := func(Handle, ...any) (any, error) { return "ok", nil }
	require.NoError(t, reg.RegisterHelper("wait_for_event", fn))

	var dup *DuplicateNameError
	require.ErrorAs(t, reg.RegisterHelper("wait_for_event", fn), &dup)
	assert.Equal(t, "helper", dup.Kind)

	_, err := reg.Helper("nope")
	var unknown *UnknownHelperError
	require.ErrorAs(t, err, &unknown)

	assert.Equal(t, []string{"wait_for_event"}, reg.HelperNames())
}

type stubPlugin struct {
	name string
	err  error
}

func (p stubPlugin) Name() string { return p.name }

func (p stubPlugin) Register(reg *Registry) error {
	if p.err != nil {
		return p.err
	}
	return reg.Register(&Descriptor{Name: p.name + "_value", Scope: ScopeSession, Factory: constFactory(p.name)})
}

func TestRegistry_Install(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Install(stubPlugin{name: "ayon"}))
	assert.Equal(t, []string{"ayon"}, reg.Plugins())
	assert.Equal(t, []string{"ayon_value"}, reg.Names())

	boom := errors.New("boom")
	err := reg.Install(stubPlugin{name: "broken", err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")

	assert.Panics(t, func() { reg.MustInstall(stubPlugin{name: "ayon"}) })
}

func TestParseScope(t *testing.T) {
	tests := map[string]Scope{
		"test":     ScopeTest,
		"function": ScopeTest,
		"Session":  ScopeSession,
		" process": ScopeProcess,
	}
	for in, want := range tests {
		got, err := ParseScope(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseScope("module")
	assert.Error(t, err)
	assert.True(t, ScopeProcess.Wider(ScopeSession))
	assert.False(t, ScopeTest.Wider(ScopeTest))
}

package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuite_ScopeTearsDownOnCleanup(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	require.NoError(t, reg.Register(Define("client", ScopeSession,
		func(Handle) (string, error) { return "client", nil },
		func(string) error { rec.add("client"); return nil })))
	require.NoError(t, reg.Register(Define("project", ScopeTest,
		func(h Handle) (string, error) {
			c, err := Get[string](h, "client")
			return c + "/project", err
		},
		func(string) error { rec.add("project"); return nil })))

	suite := NewSuite(reg)
	assert.True(t, reg.Sealed())

	for i := 0; i < 2; i++ {
		t.Run("uses project", func(t *testing.T) {
			h := suite.Scope(t)
			assert.Equal(t, ScopeTest, h.Scope())
			assert.Equal(t, "client/project", Require[string](t, h, "project"))
			assert.Equal(t, "client/project", Require[string](t, h, "project"))
		})
	}
	assert.Equal(t, []string{"project", "project"}, rec.list())

	require.NoError(t, suite.Close())
	assert.Equal(t, []string{"project", "project", "client"}, rec.list())
}

func TestSuite_SessionHandle(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Descriptor{Name: "v", Scope: ScopeSession, Factory: constFactory(7)}))
	suite := NewSuite(reg)
	t.Cleanup(func() { _ = suite.Close() })

	h, err := suite.Session()
	require.NoError(t, err)
	assert.Equal(t, ScopeSession, h.Scope())
	assert.NotEmpty(t, h.ID())
	assert.NotNil(t, h.Context())
	assert.NotNil(t, h.Logger())

	v, err := Get[int](h, "v")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	again, err := suite.Session()
	require.NoError(t, err)
	assert.Equal(t, h.ID(), again.ID())
}

func TestSuite_Call(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterHelper("echo", func(_ Handle, args ...any) (any, error) {
		return args[0], nil
	}))
	suite := NewSuite(reg)
	t.Cleanup(func() { _ = suite.Close() })

	h := suite.Scope(t)
	assert.Equal(t, "hi", suite.Call(t, h, "echo", "hi"))
}

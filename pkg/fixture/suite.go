package fixture

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
)

// Suite binds a registry to the lifecycle of a test binary. The session
// scope spans Run; every test that calls Scope gets its own test scope.
//
//	var suite = fixture.NewSuite(reg)
//
//	func TestMain(m *testing.M) { os.Exit(suite.Run(m)) }
//
//	func TestSomething(t *testing.T) {
//	    h := suite.Scope(t)
//	    client := fixture.Require[*ayon.Client](t, h, "ayon_server_session")
//	}
type Suite struct {
	manager *Manager
	logger  *slog.Logger

	mu      sync.Mutex
	session *ScopeContext
}

// NewSuite seals reg and creates a suite over it
func NewSuite(reg *Registry, opts ...Option) *Suite {
	reg.Seal()
	m := NewManager(reg, opts...)
	return &Suite{
		manager: m,
		logger:  m.logger,
	}
}

// Manager returns the underlying lifecycle manager
func (s *Suite) Manager() *Manager {
	return s.manager
}

// Run begins the session scope, runs the tests and tears everything down.
// The returned code is non-zero when the tests failed or a teardown failed.
func (s *Suite) Run(m *testing.M) int {
	if _, err := s.ensureSession(); err != nil {
		fmt.Fprintf(os.Stderr, "fixture: failed to begin session: %v\n", err)
		return 1
	}

	code := m.Run()

	if err := s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "fixture: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// Close ends the session and process scopes
func (s *Suite) Close() error {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	var sessionErr error
	if session != nil {
		sessionErr = s.manager.Close(session)
	}
	if err := s.manager.Shutdown(); err != nil {
		if sessionErr != nil {
			return fmt.Errorf("%w; %w", sessionErr, err)
		}
		return err
	}
	return sessionErr
}

// Session returns a handle bound to the session scope, beginning it if needed
func (s *Suite) Session() (Handle, error) {
	sc, err := s.ensureSession()
	if err != nil {
		return nil, err
	}
	return s.manager.Handle(sc), nil
}

// Scope begins a test scope for tb and closes it when tb finishes.
// Teardown failures are reported through tb.Errorf.
func (s *Suite) Scope(tb testing.TB) Handle {
	tb.Helper()

	session, err := s.ensureSession()
	if err != nil {
		tb.Fatalf("fixture: failed to begin session: %v", err)
	}
	sc, err := s.manager.BeginTest(session)
	if err != nil {
		tb.Fatalf("fixture: failed to begin test scope: %v", err)
	}
	tb.Cleanup(func() {
		if err := s.manager.Close(sc); err != nil {
			tb.Errorf("fixture: %v", err)
		}
	})
	return s.manager.Handle(sc)
}

// Call dispatches a helper within a test scope, failing tb on error
func (s *Suite) Call(tb testing.TB, h Handle, name string, args ...any) any {
	tb.Helper()

	fn, err := s.manager.registry.Helper(name)
	if err != nil {
		tb.Fatalf("fixture: %v", err)
	}
	out, err := fn(h, args...)
	if err != nil {
		tb.Fatalf("fixture: helper '%s' failed: %v", name, err)
	}
	return out
}

func (s *Suite) ensureSession() (*ScopeContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return s.session, nil
	}
	session, err := s.manager.BeginSession()
	if err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

// Require resolves the named fixture and asserts its type. Any failure
// aborts the requesting test with tb.Fatalf.
func Require[T any](tb testing.TB, h Handle, name string) T {
	tb.Helper()

	v, err := Get[T](h, name)
	if err != nil {
		tb.Fatalf("fixture: failed to resolve '%s': %v", name, err)
	}
	return v
}

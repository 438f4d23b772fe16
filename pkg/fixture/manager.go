package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Manager materializes fixtures per scope, memoizes them for the scope's
// lifetime and tears them down when the scope ends.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
	ctx      context.Context
	process  *ScopeContext
}

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle events
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithContext sets the context handed to every scope
func WithContext(ctx context.Context) Option {
	return func(m *Manager) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// NewManager creates a manager over reg and begins the process scope
func NewManager(reg *Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		logger:   slog.New(slog.DiscardHandler),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "fixture")
	m.process = newScopeContext(m.ctx, ScopeProcess, nil, m.logger)
	return m
}

// Registry returns the registry the manager resolves against
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Process returns the process scope
func (m *Manager) Process() *ScopeContext {
	return m.process
}

// Begin starts a scope of the given kind nested in parent.
// A nil parent means the process scope.
func (m *Manager) Begin(parent *ScopeContext, kind Scope) (*ScopeContext, error) {
	if parent == nil {
		parent = m.process
	}
	if !parent.kind.Wider(kind) {
		return nil, &ScopeNestingError{Parent: parent.kind, Child: kind}
	}

	sc := newScopeContext(parent.ctx, kind, parent, m.logger)
	if err := parent.adopt(sc); err != nil {
		return nil, err
	}
	sc.logger.Debug("scope begun")
	return sc, nil
}

// BeginSession starts a session scope under the process scope
func (m *Manager) BeginSession() (*ScopeContext, error) {
	return m.Begin(m.process, ScopeSession)
}

// BeginTest starts a test scope under session
func (m *Manager) BeginTest(session *ScopeContext) (*ScopeContext, error) {
	return m.Begin(session, ScopeTest)
}

// Resolve returns the value of the named fixture for sc, invoking its
// factory only the first time it is requested in the owning scope.
func (m *Manager) Resolve(name string, sc *ScopeContext) (any, error) {
	return m.resolve(newResolution(), sc, name)
}

// Handle returns a handle bound to sc
func (m *Manager) Handle(sc *ScopeContext) Handle {
	return &handle{m: m, sc: sc}
}

// Call dispatches the named helper with a handle bound to sc.
// Errors from the helper are returned unchanged.
func (m *Manager) Call(sc *ScopeContext, name string, args ...any) (any, error) {
	fn, err := m.registry.Helper(name)
	if err != nil {
		return nil, err
	}
	return fn(m.Handle(sc), args...)
}

// Close ends sc. Open child scopes are closed first, then every fixture
// materialized in sc is torn down in reverse creation order. Teardown
// failures are collected and returned together as a *TeardownError after
// all teardowns ran. Closing an already closed scope is a no-op.
func (m *Manager) Close(sc *ScopeContext) error {
	var failures []*FixtureError

	for _, child := range sc.openChildren() {
		if err := m.Close(child); err != nil {
			if te, ok := err.(*TeardownError); ok {
				failures = append(failures, te.Failures...)
			}
		}
	}

	sc.setup.Lock()
	defer sc.setup.Unlock()

	order, values, ok := sc.finish()
	if !ok {
		return nil
	}
	if sc.parent != nil {
		sc.parent.release(sc)
	}

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if err := m.teardown(sc, name, values[name]); err != nil {
			sc.logger.Warn("fixture teardown failed", "fixture", name, "error", err)
			failures = append(failures, &FixtureError{Name: name, Err: err})
		}
	}
	sc.logger.Debug("scope closed", "fixtures", len(order))

	if len(failures) > 0 {
		return &TeardownError{Scope: sc.kind, Failures: failures}
	}
	return nil
}

// Shutdown closes the process scope and everything nested in it
func (m *Manager) Shutdown() error {
	return m.Close(m.process)
}

func (m *Manager) resolve(res *resolution, sc *ScopeContext, name string) (any, error) {
	d, err := m.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	owner := sc.find(d.Scope)
	if owner == nil {
		return nil, &ScopeMismatchError{Name: name, Scope: d.Scope, Requester: sc.kind}
	}

	if v, ok, err := owner.cached(name); err != nil || ok {
		return v, err
	}

	if !res.held[owner] {
		owner.setup.Lock()
		res.held[owner] = true
		defer func() {
			delete(res.held, owner)
			owner.setup.Unlock()
		}()

		// another chain may have materialized it while we waited
		if v, ok, err := owner.cached(name); err != nil || ok {
			return v, err
		}
	}

	if !owner.begin(name) {
		path := make([]string, 0, len(res.path)+1)
		path = append(path, res.path...)
		path = append(path, name)
		return nil, &CyclicFixtureError{Path: path}
	}

	res.path = append(res.path, name)
	value, err := m.setup(d, owner, res)
	res.path = res.path[:len(res.path)-1]
	if err != nil {
		owner.abort(name)
		return nil, err
	}

	if err := owner.store(name, value); err != nil {
		if tdErr := m.teardown(owner, name, value); tdErr != nil {
			owner.logger.Warn("fixture teardown failed", "fixture", name, "error", tdErr)
		}
		return nil, err
	}
	owner.logger.Debug("fixture materialized", "fixture", name)
	return value, nil
}

func (m *Manager) setup(d *Descriptor, owner *ScopeContext, res *resolution) (value any, err error) {
	h := &handle{m: m, sc: owner, res: res}
	defer func() {
		h.detached.Store(true)
		if r := recover(); r != nil {
			err = fmt.Errorf("fixture '%s' setup panicked: %v", d.Name, r)
		}
	}()
	return d.Factory.Setup(h)
}

func (m *Manager) teardown(sc *ScopeContext, name string, value any) (err error) {
	d, err := m.registry.Lookup(name)
	if err != nil {
		return err
	}
	if d.Teardown == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("teardown panicked: %v", r)
		}
	}()
	if err := d.Teardown(value); err != nil {
		return err
	}
	sc.logger.Debug("fixture torn down", "fixture", name)
	return nil
}

// resolution tracks one chain of nested factory calls
type resolution struct {
	held map[*ScopeContext]bool
	path []string
}

func newResolution() *resolution {
	return &resolution{held: make(map[*ScopeContext]bool)}
}

type handle struct {
	m   *Manager
	sc  *ScopeContext
	res *resolution
	// detached is set once the factory that received the handle returned
	detached atomic.Bool
}

// Resolve reuses the factory's resolution while the factory runs so nested
// lookups skip locks it already holds. Once detached it takes them afresh.
func (h *handle) Resolve(name string) (any, error) {
	res := h.res
	if res == nil || h.detached.Load() {
		res = newResolution()
	}
	return h.m.resolve(res, h.sc, name)
}

func (h *handle) Scope() Scope {
	return h.sc.kind
}

func (h *handle) ID() string {
	return h.sc.id
}

func (h *handle) Context() context.Context {
	return h.sc.ctx
}

func (h *handle) Logger() *slog.Logger {
	return h.sc.logger
}

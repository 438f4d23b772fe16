package fixture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ScopeContext holds the fixture values materialized for one instance of a scope.
// Contexts form a stack through their parent: Process, then Session, then Test.
type ScopeContext struct {
	kind   Scope
	id     string
	parent *ScopeContext
	ctx    context.Context
	logger *slog.Logger

	// setup serializes materialization so the first caller creates a value
	// and every concurrent caller waits for it
	setup sync.Mutex

	mu         sync.Mutex
	values     map[string]any
	order      []string
	inProgress map[string]bool
	children   map[*ScopeContext]struct{}
	closed     bool
}

func newScopeContext(ctx context.Context, kind Scope, parent *ScopeContext, logger *slog.Logger) *ScopeContext {
	id := uuid.NewString()
	return &ScopeContext{
		kind:       kind,
		id:         id,
		parent:     parent,
		ctx:        ctx,
		logger:     logger.With("scope", kind.String(), "scope_id", id),
		values:     make(map[string]any),
		inProgress: make(map[string]bool),
		children:   make(map[*ScopeContext]struct{}),
	}
}

// Kind returns the scope kind
func (sc *ScopeContext) Kind() Scope {
	return sc.kind
}

// ID returns the unique id of this scope instance
func (sc *ScopeContext) ID() string {
	return sc.id
}

// Parent returns the enclosing scope, nil for the process scope
func (sc *ScopeContext) Parent() *ScopeContext {
	return sc.parent
}

// Closed reports whether the scope has ended
func (sc *ScopeContext) Closed() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.closed
}

// Names returns the materialized fixture names in creation order
func (sc *ScopeContext) Names() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out := make([]string, len(sc.order))
	copy(out, sc.order)
	return out
}

// Value returns an already materialized value without invoking any factory
func (sc *ScopeContext) Value(name string) (any, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	v, ok := sc.values[name]
	return v, ok
}

// find walks up the stack to the context of the given kind
func (sc *ScopeContext) find(kind Scope) *ScopeContext {
	for cur := sc; cur != nil; cur = cur.parent {
		if cur.kind == kind {
			return cur
		}
	}
	return nil
}

func (sc *ScopeContext) cached(name string) (any, bool, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return nil, false, ErrScopeClosed
	}
	v, ok := sc.values[name]
	return v, ok, nil
}

// begin marks name as being materialized; false means it already is
func (sc *ScopeContext) begin(name string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.inProgress[name] {
		return false
	}
	sc.inProgress[name] = true
	return true
}

func (sc *ScopeContext) abort(name string) {
	sc.mu.Lock()
	delete(sc.inProgress, name)
	sc.mu.Unlock()
}

func (sc *ScopeContext) store(name string, value any) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	delete(sc.inProgress, name)
	if sc.closed {
		return ErrScopeClosed
	}
	sc.values[name] = value
	sc.order = append(sc.order, name)
	return nil
}

func (sc *ScopeContext) adopt(child *ScopeContext) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return ErrScopeClosed
	}
	sc.children[child] = struct{}{}
	return nil
}

func (sc *ScopeContext) release(child *ScopeContext) {
	sc.mu.Lock()
	delete(sc.children, child)
	sc.mu.Unlock()
}

func (sc *ScopeContext) openChildren() []*ScopeContext {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out := make([]*ScopeContext, 0, len(sc.children))
	for child := range sc.children {
		out = append(out, child)
	}
	return out
}

// finish marks the scope closed and hands back what must be torn down.
// It returns false when the scope was already closed.
func (sc *ScopeContext) finish() ([]string, map[string]any, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return nil, nil, false
	}
	sc.closed = true
	order, values := sc.order, sc.values
	sc.order = nil
	sc.values = make(map[string]any)
	return order, values, true
}

package fixture

import (
	"fmt"
	"strings"
)

// Scope is the lifetime boundary that governs when a fixture is created and
// torn down. Scopes are ordered by width: a Test scope lives inside a Session
// scope, which lives inside the Process scope.
type Scope int

const (
	// ScopeTest values live for a single test.
	ScopeTest Scope = iota + 1
	// ScopeSession values live for one test binary run.
	ScopeSession
	// ScopeProcess values live until the manager is shut down.
	ScopeProcess
)

// String returns the scope name
func (s Scope) String() string {
	switch s {
	case ScopeTest:
		return "test"
	case ScopeSession:
		return "session"
	case ScopeProcess:
		return "process"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Valid reports whether s is one of the known scopes
func (s Scope) Valid() bool {
	return s >= ScopeTest && s <= ScopeProcess
}

// Wider reports whether s outlives other
func (s Scope) Wider(other Scope) bool {
	return s > other
}

// ParseScope parses a scope name ("test", "function", "session", "process")
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "test", "function":
		return ScopeTest, nil
	case "session":
		return ScopeSession, nil
	case "process":
		return ScopeProcess, nil
	default:
		return 0, fmt.Errorf("unknown fixture scope: %s", name)
	}
}

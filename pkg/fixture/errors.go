package fixture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRegistrySealed is returned when registering into a sealed registry
	ErrRegistrySealed = errors.New("fixture registry is sealed")
	// ErrScopeClosed is returned when resolving in a scope that already ended
	ErrScopeClosed = errors.New("fixture scope is closed")
)

// DuplicateNameError is returned when a fixture or helper name is registered twice
type DuplicateNameError struct {
	Name string
	Kind string
}

func (e *DuplicateNameError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "fixture"
	}
	return fmt.Sprintf("%s '%s' is already registered", kind, e.Name)
}

// UnknownFixtureError is returned when a fixture name is not registered
type UnknownFixtureError struct {
	Name string
}

func (e *UnknownFixtureError) Error() string {
	return fmt.Sprintf("unknown fixture: %s", e.Name)
}

// UnknownHelperError is returned when a helper name is not registered
type UnknownHelperError struct {
	Name string
}

func (e *UnknownHelperError) Error() string {
	return fmt.Sprintf("unknown helper: %s", e.Name)
}

// CyclicFixtureError is returned when fixture factories depend on each other in a cycle.
// Path lists the resolution chain ending with the name that closed the cycle.
type CyclicFixtureError struct {
	Path []string
}

func (e *CyclicFixtureError) Error() string {
	return fmt.Sprintf("cyclic fixture dependency: %s", strings.Join(e.Path, " -> "))
}

// ScopeMismatchError is returned when a fixture is requested from a scope that
// cannot own it, e.g. a session fixture asking for a test fixture.
type ScopeMismatchError struct {
	Name      string
	Scope     Scope
	Requester Scope
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("fixture '%s' has %s scope and cannot be resolved from a %s scope",
		e.Name, e.Scope, e.Requester)
}

// ScopeNestingError is returned when a scope is begun under a parent that is not wider
type ScopeNestingError struct {
	Parent Scope
	Child  Scope
}

func (e *ScopeNestingError) Error() string {
	return fmt.Sprintf("cannot begin a %s scope inside a %s scope", e.Child, e.Parent)
}

// TypeMismatchError is returned by Get when the fixture value has an unexpected type
type TypeMismatchError struct {
	Name string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("fixture '%s' is %s, not %s", e.Name, e.Got, e.Want)
}

// FixtureError attaches a fixture name to a failure
type FixtureError struct {
	Name string
	Err  error
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("fixture '%s': %v", e.Name, e.Err)
}

func (e *FixtureError) Unwrap() error {
	return e.Err
}

// TeardownError aggregates every teardown failure of one scope.
// Failures are listed in the order the teardowns ran.
type TeardownError struct {
	Scope    Scope
	Failures []*FixtureError
}

func (e *TeardownError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%d teardown failure(s) in %s scope: %s",
		len(e.Failures), e.Scope, strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As
func (e *TeardownError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

package fixture

import (
	"context"
	"fmt"
	"log/slog"
)

// Handle is what factories and helpers receive to reach other fixtures.
// A factory's handle is bound to the scope that owns the fixture, so it can
// only resolve fixtures of the same or a wider scope.
//
// A handle kept after its factory returned starts a new resolution on every
// call. Such a handle may always reach fixtures that are already
// materialized, but it must not be used to materialize a new fixture from
// inside another factory of the same scope: that factory holds the scope's
// setup lock and the call blocks forever.
type Handle interface {
	// Resolve returns the value of the named fixture, materializing it on first use
	Resolve(name string) (any, error)
	// Scope returns the kind of scope the handle is bound to
	Scope() Scope
	// ID returns the unique id of the bound scope instance
	ID() string
	// Context returns the context the scope was begun with
	Context() context.Context
	// Logger returns a logger annotated with the scope
	Logger() *slog.Logger
}

// Factory produces a fixture value
type Factory interface {
	Setup(h Handle) (any, error)
}

// FactoryFunc adapts a plain function to the Factory interface
type FactoryFunc func(h Handle) (any, error)

// Setup calls f(h)
func (f FactoryFunc) Setup(h Handle) (any, error) {
	return f(h)
}

// TeardownFunc releases a value produced by a factory
type TeardownFunc func(value any) error

// Descriptor describes a registered fixture. It must not be modified after
// it has been registered.
type Descriptor struct {
	Name        string
	Scope       Scope
	Factory     Factory
	Teardown    TeardownFunc
	Description string
}

func (d *Descriptor) validate() error {
	if d == nil {
		return fmt.Errorf("fixture descriptor is nil")
	}
	if d.Name == "" {
		return fmt.Errorf("fixture descriptor is missing required field 'name'")
	}
	if !d.Scope.Valid() {
		return fmt.Errorf("fixture '%s' has invalid scope %s", d.Name, d.Scope)
	}
	if d.Factory == nil {
		return fmt.Errorf("fixture '%s' has no factory", d.Name)
	}
	return nil
}

// Define builds a descriptor from a typed setup function and an optional typed teardown
func Define[T any](name string, scope Scope, setup func(h Handle) (T, error), teardown func(T) error) *Descriptor {
	d := &Descriptor{
		Name:  name,
		Scope: scope,
		Factory: FactoryFunc(func(h Handle) (any, error) {
			return setup(h)
		}),
	}
	if teardown != nil {
		d.Teardown = func(value any) error {
			v, ok := value.(T)
			if !ok {
				return &TypeMismatchError{Name: name, Want: typeName[T](), Got: fmt.Sprintf("%T", value)}
			}
			return teardown(v)
		}
	}
	return d
}

// Get resolves a fixture through h and asserts its type
func Get[T any](h Handle, name string) (T, error) {
	var zero T
	value, err := h.Resolve(name)
	if err != nil {
		return zero, err
	}
	v, ok := value.(T)
	if !ok {
		return zero, &TypeMismatchError{Name: name, Want: typeName[T](), Got: fmt.Sprintf("%T", value)}
	}
	return v, nil
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", &zero)[1:]
}

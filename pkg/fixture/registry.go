// Package fixture defines the registry and lifecycle manager for scoped test fixtures.
package fixture

import (
	"fmt"
	"sort"
	"sync"
)

// HelperFunc is a stateless helper exposed to tests. It borrows fixtures
// through h and never registers teardown.
type HelperFunc func(h Handle, args ...any) (any, error)

// Plugin contributes fixtures and helpers to a registry at load time
type Plugin interface {
	// Name returns the entry-point name of the plugin
	Name() string
	// Register adds the plugin's fixtures and helpers to the registry
	Register(reg *Registry) error
}

// Registry holds all registered fixtures and helpers.
// It is populated once at plugin load and read-only after Seal.
type Registry struct {
	mu       sync.RWMutex
	fixtures map[string]*Descriptor
	helpers  map[string]HelperFunc
	plugins  []string
	sealed   bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		fixtures: make(map[string]*Descriptor),
		helpers:  make(map[string]HelperFunc),
	}
}

// Register registers a fixture descriptor
func (r *Registry) Register(d *Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.fixtures[d.Name]; exists {
		return &DuplicateNameError{Name: d.Name, Kind: "fixture"}
	}
	r.fixtures[d.Name] = d
	return nil
}

// MustRegister registers d and panics on failure
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under name
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, exists := r.fixtures[name]
	if !exists {
		return nil, &UnknownFixtureError{Name: name}
	}
	return d, nil
}

// RegisterHelper registers a named helper
func (r *Registry) RegisterHelper(name string, fn HelperFunc) error {
	if name == "" {
		return fmt.Errorf("helper is missing required field 'name'")
	}
	if fn == nil {
		return fmt.Errorf("helper '%s' has no function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.helpers[name]; exists {
		return &DuplicateNameError{Name: name, Kind: "helper"}
	}
	r.helpers[name] = fn
	return nil
}

// Helper returns the helper registered under name
func (r *Registry) Helper(name string) (HelperFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, exists := r.helpers[name]
	if !exists {
		return nil, &UnknownHelperError{Name: name}
	}
	return fn, nil
}

// Install registers everything a plugin contributes
func (r *Registry) Install(p Plugin) error {
	if err := p.Register(r); err != nil {
		return fmt.Errorf("failed to install plugin '%s': %w", p.Name(), err)
	}

	r.mu.Lock()
	r.plugins = append(r.plugins, p.Name())
	r.mu.Unlock()
	return nil
}

// MustInstall installs p and panics on failure. Registration errors are fatal at load.
func (r *Registry) MustInstall(p Plugin) {
	if err := r.Install(p); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Names returns all registered fixture names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.fixtures))
	for name := range r.fixtures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns all registered descriptors sorted by name
func (r *Registry) Descriptors() []*Descriptor {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, r.fixtures[name])
	}
	return out
}

// HelperNames returns all registered helper names, sorted
func (r *Registry) HelperNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.helpers))
	for name := range r.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plugins returns the names of installed plugins in install order
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.plugins))
	copy(out, r.plugins)
	return out
}

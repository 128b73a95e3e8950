// Package registry maps names to implementations chosen at configuration time
package registry

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrEmptyName is returned when an empty name is provided
	ErrEmptyName = errors.New("registry: empty name provided")
	// ErrConflict indicates an attempt to register a name twice
	ErrConflict = errors.New("registry: name already registered")
	// ErrUnknown is returned when a name has no registration
	ErrUnknown = errors.New("registry: unknown name")
)

// Registry is a concurrency-safe name to value table
type Registry[T any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]T
}

// New creates an empty registry; kind names the registered values in errors
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, entries: make(map[string]T)}
}

// Register associates v with name
func (r *Registry[T]) Register(name string, v T) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return errors.Wrapf(ErrConflict, "%s %q", r.kind, name)
	}
	r.entries[name] = v
	return nil
}

// MustRegister is Register that panics on error, for package init tables
func (r *Registry[T]) MustRegister(name string, v T) {
	if err := r.Register(name, v); err != nil {
		panic(err)
	}
}

// Lookup returns the value registered under name
func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrUnknown, "%s %q", r.kind, name)
	}
	return v, nil
}

// Names returns every registered name in sorted order
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered entries
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

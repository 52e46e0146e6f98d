package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports that the verifier binary does not exist. Absence of the
// tool is a configuration error, never retried.
var ErrNotFound = errors.New("verifier binary not found")

// Verifier runs an external verification tool against a source buffer. A
// backend is anything that can produce pass/fail plus raw text from a source
// buffer and a parameter list.
type Verifier interface {
	Name() string
	Check(ctx context.Context, source string, params []string, timeout time.Duration) (Output, error)
}

// Registry maps backend names to implementations. It is populated once at
// startup; there is no reflection-based discovery.
type Registry struct {
	backends       map[string]Verifier
	defaultBackend string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Verifier)}
}

// Register adds a backend implementation.
func (r *Registry) Register(v Verifier, isDefault bool) {
	r.backends[v.Name()] = v
	if isDefault || r.defaultBackend == "" {
		r.defaultBackend = v.Name()
	}
}

// Resolve returns the backend for a given name (default if empty).
func (r *Registry) Resolve(name string) (Verifier, error) {
	if name == "" {
		name = r.defaultBackend
	}
	v, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("verifier backend %q not registered", name)
	}
	return v, nil
}

// Package registry maps page names to render handlers.
//
// Pages are registered explicitly at startup instead of being discovered by
// scanning directories and importing modules at runtime, so the set of
// pages is known, ordered, and testable.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cryptolytica/goclient/state"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrNilHandler indicates a nil page handler.
	ErrNilHandler = errors.New("registry: handler cannot be nil")
	// ErrEmptyName indicates an empty page name.
	ErrEmptyName = errors.New("registry: page name cannot be empty")
)

// --------------------------------------------------------------------------------
// Types

// HandlerFunc renders one page against the shared dashboard state.
type HandlerFunc func(ctx context.Context, store *state.Store) error

// Registry holds the named page handlers in registration order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	order    []string
}

// --------------------------------------------------------------------------------
// Constructors

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// --------------------------------------------------------------------------------
// Public Methods

// Register adds a page handler. Registering the same name twice is an
// error; pages are wired once at startup.
func (r *Registry) Register(name string, h HandlerFunc) error {
	if name == "" {
		return ErrEmptyName
	}

	if h == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("registry: page %q already registered", name)
	}

	r.handlers[name] = h
	r.order = append(r.order, name)

	return nil
}

// Lookup returns the handler for name and whether it exists.
func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]

	return h, ok
}

// Names returns the page names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Render runs the handler for name, failing when the page is unknown.
func (r *Registry) Render(ctx context.Context, name string, store *state.Store) error {
	h, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("registry: unknown page %q", name)
	}

	return h(ctx, store)
}

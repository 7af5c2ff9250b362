// Package state provides an explicit, injectable key/value store for
// dashboard orchestration.
//
// It replaces ambient framework-managed session state: whatever orchestrates
// client calls receives a *Store and owns its lifetime, so nothing depends
// on process-wide globals. Keys can be scoped per domain
// ("domain:key") and per page ("domain:page:key").
package state

import "sync"

// --------------------------------------------------------------------------------
// Types

// Store is a concurrency-safe namespaced key/value store.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// --------------------------------------------------------------------------------
// Constructors

// New creates an empty Store.
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// --------------------------------------------------------------------------------
// Public Methods

// Set stores a value under key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// GetDefault returns the value for key, or def when absent.
func (s *Store) GetDefault(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}

	return def
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}

// Reset removes all keys.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]any)
}

// --------------------------------------------------------------------------------
// Scoped Access

// SetDomain stores a value scoped to one domain.
func (s *Store) SetDomain(domain, key string, value any) {
	s.Set(domain+":"+key, value)
}

// Domain returns a domain-scoped value and whether it exists.
func (s *Store) Domain(domain, key string) (any, bool) {
	return s.Get(domain + ":" + key)
}

// SetPage stores a value scoped to one page within a domain.
func (s *Store) SetPage(domain, page, key string, value any) {
	s.Set(domain+":"+page+":"+key, value)
}

// Page returns a page-scoped value and whether it exists.
func (s *Store) Page(domain, page, key string) (any, bool) {
	return s.Get(domain + ":" + page + ":" + key)
}

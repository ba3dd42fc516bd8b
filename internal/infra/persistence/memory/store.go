// Package memory keeps user preferences in process memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is a guarded map of preference values.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{values: make(map[string]string)} }

// Get returns the value stored under name.
func (s *Store) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok, nil
}

// Put stores value under name, replacing any previous value.
func (s *Store) Put(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

// Delete removes name. Missing names are ignored.
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, name)
	return nil
}

// Names lists stored names with the given prefix in ascending order.
func (s *Store) Names(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

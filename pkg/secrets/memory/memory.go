// Package memory provides an in-memory secrets.Store. Values are lost when
// the process exits.
package memory

import (
	"context"
	"sync"

	"github.com/rhuss/chatbridge/pkg/secrets"
)

// Store is a map-backed secrets.Store safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// Ensure Store implements secrets.Store at compile time.
var _ secrets.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the value for key or secrets.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return v, nil
}

// Store saves value under key.
func (s *Store) Store(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

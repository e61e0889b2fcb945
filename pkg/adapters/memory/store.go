// Package memory provides in-process adapters for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.State
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.State),
	}
}

// Save persists a copy of the record.
func (s *Store) Save(ctx context.Context, vehicleID string, state *domain.State) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[vehicleID] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored record by pointer.
func (s *Store) Load(ctx context.Context, vehicleID string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[vehicleID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return state.Clone(), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, vehicleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, vehicleID)
	return nil
}

// List returns the stored vehicle ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

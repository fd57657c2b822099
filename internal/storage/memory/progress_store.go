package memory

import (
	"context"
	"sync"
	"time"

	"github.com/contactkeval/strike-engine/internal/storage"
)

// ProgressStore is an in-memory implementation of storage.ProgressStore.
type ProgressStore struct {
	mu   sync.RWMutex
	done map[time.Time]bool
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{done: make(map[time.Time]bool)}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// MarkDone records a day as fully harvested.
func (s *ProgressStore) MarkDone(_ context.Context, day time.Time) error {
	if day.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[dayKey(day)] = true
	return nil
}

// IsDone reports whether a day has been harvested.
func (s *ProgressStore) IsDone(_ context.Context, day time.Time) (bool, error) {
	if day.IsZero() {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done[dayKey(day)], nil
}

// DoneCount returns the number of completed days.
func (s *ProgressStore) DoneCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.done), nil
}

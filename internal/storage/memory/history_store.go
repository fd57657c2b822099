// Package memory provides in-memory storage implementations, used in
// tests and when no database DSN is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	rows map[time.Time]data.HistoryRow
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{rows: make(map[time.Time]data.HistoryRow)}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// InsertBulk appends a batch of rows. Fails the entire batch on a
// duplicate date.
func (s *HistoryStore) InsertBulk(_ context.Context, rows []data.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[time.Time]struct{}, len(rows))
	for _, r := range rows {
		if r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		day := dayKey(r.Date)
		if _, dup := seen[day]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.rows[day]; dup {
			return storage.ErrDuplicateKey
		}
		seen[day] = struct{}{}
	}

	for _, r := range rows {
		s.rows[dayKey(r.Date)] = r
	}
	return nil
}

// GetRange returns rows with from <= Date <= to, ordered by date.
func (s *HistoryStore) GetRange(_ context.Context, from, to time.Time) ([]data.HistoryRow, error) {
	if to.Before(from) {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []data.HistoryRow
	lo, hi := dayKey(from), dayKey(to)
	for day, r := range s.rows {
		if day.Before(lo) || day.After(hi) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetAll returns every stored row ordered by date.
func (s *HistoryStore) GetAll(_ context.Context) ([]data.HistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]data.HistoryRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

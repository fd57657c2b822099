package postgres

import (
	"context"
	"time"

	"github.com/contactkeval/strike-engine/internal/storage"
)

// ProgressStore is a PostgreSQL implementation of storage.ProgressStore.
// One row per completed day in harvest_progress.
type ProgressStore struct {
	pool *Pool
}

// NewProgressStore creates a new PostgreSQL progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// MarkDone records a day as fully harvested. Idempotent.
func (s *ProgressStore) MarkDone(ctx context.Context, day time.Time) error {
	if day.IsZero() {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO harvest_progress (day, done_at)
		VALUES ($1, NOW())
		ON CONFLICT (day) DO NOTHING
	`, day.UTC())

	if isDuplicateKeyError(err) {
		return nil
	}
	return err
}

// IsDone reports whether a day has been harvested.
func (s *ProgressStore) IsDone(ctx context.Context, day time.Time) (bool, error) {
	if day.IsZero() {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM harvest_progress WHERE day = $1)
	`, day.UTC())

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// DoneCount returns the number of completed days.
func (s *ProgressStore) DoneCount(ctx context.Context) (int, error) {
	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM harvest_progress`)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

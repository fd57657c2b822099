// Package storage defines the persistence interfaces for harvested
// market history and harvest progress, with ClickHouse, Postgres and
// in-memory implementations in subpackages.
package storage

import (
	"context"
	"time"

	"github.com/contactkeval/strike-engine/internal/data"
)

// HistoryStore persists harvested daily market rows. Rows are keyed by
// calendar date (UTC midnight); re-inserting a date fails.
type HistoryStore interface {
	// InsertBulk appends a batch of rows. Fails the entire batch on a
	// duplicate date, within the batch or against stored rows.
	InsertBulk(ctx context.Context, rows []data.HistoryRow) error

	// GetRange returns rows with from <= Date <= to, ordered by date.
	GetRange(ctx context.Context, from, to time.Time) ([]data.HistoryRow, error)

	// GetAll returns every stored row ordered by date.
	GetAll(ctx context.Context) ([]data.HistoryRow, error)
}

// ProgressStore tracks which days the harvester has completed, so an
// interrupted run resumes instead of refetching.
type ProgressStore interface {
	// MarkDone records a day as fully harvested. Idempotent.
	MarkDone(ctx context.Context, day time.Time) error

	// IsDone reports whether a day has been harvested.
	IsDone(ctx context.Context, day time.Time) (bool, error)

	// DoneCount returns the number of completed days.
	DoneCount(ctx context.Context) (int, error)
}

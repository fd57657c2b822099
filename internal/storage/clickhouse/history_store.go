package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/storage"
)

// HistoryStore implements storage.HistoryStore using ClickHouse.
// Schema (see migrations): market_history(date Date, open, high, low,
// close, volume, dvol Float64) ENGINE = MergeTree ORDER BY date.
type HistoryStore struct {
	conn *Conn
}

// NewHistoryStore creates a new ClickHouse history store.
func NewHistoryStore(conn *Conn) *HistoryStore {
	return &HistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// InsertBulk appends a batch of rows. Fails the entire batch on a
// duplicate date; MergeTree does not enforce uniqueness, so duplicates
// are detected with explicit checks before the batch insert.
func (s *HistoryStore) InsertBulk(ctx context.Context, rows []data.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[time.Time]struct{}, len(rows))
	for _, r := range rows {
		if r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		day := dayKey(r.Date)
		if _, dup := seen[day]; dup {
			return storage.ErrDuplicateKey
		}
		seen[day] = struct{}{}

		exists, err := s.exists(ctx, day)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_history (
			date, open, high, low, close, volume, dvol
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			dayKey(r.Date), r.Open, r.High, r.Low,
			r.Close, r.Volume, r.DVOL,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves rows within [from, to] (inclusive), ordered by
// date ASC.
func (s *HistoryStore) GetRange(ctx context.Context, from, to time.Time) ([]data.HistoryRow, error) {
	if to.Before(from) {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT date, open, high, low, close, volume, dvol
		FROM market_history
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, dayKey(from), dayKey(to))
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// GetAll retrieves every stored row ordered by date ASC.
func (s *HistoryStore) GetAll(ctx context.Context) ([]data.HistoryRow, error) {
	query := `
		SELECT date, open, high, low, close, volume, dvol
		FROM market_history
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// exists checks if a row for the given day exists.
func (s *HistoryStore) exists(ctx context.Context, day time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM market_history WHERE date = ?
	`

	row := s.conn.QueryRow(ctx, query, day)

	var count uint64
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scan count: %w", err)
	}
	return count > 0, nil
}

func scanHistory(rows driver.Rows) ([]data.HistoryRow, error) {
	var out []data.HistoryRow
	for rows.Next() {
		var r data.HistoryRow
		err := rows.Scan(&r.Date, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.DVOL)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Package harvest drives the day-by-day collection of market history
// into the stores, resumable across interrupted runs.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/logger"
	"github.com/contactkeval/strike-engine/internal/storage"
)

// Options tune the harvest loop.
type Options struct {
	MaxRetries int           // attempts per day before aborting the run
	Backoff    time.Duration // base delay between retries, doubled each attempt
	Pause      time.Duration // delay between successive days, keeps the API happy
}

// DefaultOptions returns the production harvest settings.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		Backoff:    2 * time.Second,
		Pause:      250 * time.Millisecond,
	}
}

// Stats summarizes one harvest run.
type Stats struct {
	Fetched int
	Skipped int
}

// Manager coordinates the fetcher and the two stores. Each day is an
// atomic unit: insert then checkpoint, so a crash between days loses
// nothing and a crash inside a day refetches at most that day.
type Manager struct {
	fetcher  data.HistoryFetcher
	history  storage.HistoryStore
	progress storage.ProgressStore
	opts     Options
}

// NewManager builds a harvest manager.
func NewManager(fetcher data.HistoryFetcher, history storage.HistoryStore, progress storage.ProgressStore, opts Options) *Manager {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &Manager{fetcher: fetcher, history: history, progress: progress, opts: opts}
}

// Run harvests every UTC day in [from, to], skipping days already
// checkpointed. A day that still fails after MaxRetries aborts the run;
// everything harvested before it stays checkpointed.
func (m *Manager) Run(ctx context.Context, from, to time.Time) (Stats, error) {
	var stats Stats
	if to.Before(from) {
		return stats, fmt.Errorf("harvest range: to %s before from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		done, err := m.progress.IsDone(ctx, day)
		if err != nil {
			return stats, fmt.Errorf("check progress for %s: %w", day.Format("2006-01-02"), err)
		}
		if done {
			stats.Skipped++
			continue
		}

		row, err := m.fetchWithRetry(ctx, day)
		if err != nil {
			return stats, fmt.Errorf("fetch %s: %w", day.Format("2006-01-02"), err)
		}

		err = m.history.InsertBulk(ctx, []data.HistoryRow{row})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return stats, fmt.Errorf("insert %s: %w", day.Format("2006-01-02"), err)
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Row landed on a previous run that died before the
			// checkpoint. Fall through and checkpoint now.
			logger.Debugf("row for %s already stored", day.Format("2006-01-02"))
		}

		if err := m.progress.MarkDone(ctx, day); err != nil {
			return stats, fmt.Errorf("checkpoint %s: %w", day.Format("2006-01-02"), err)
		}
		stats.Fetched++

		if m.opts.Pause > 0 && day.Before(to) {
			select {
			case <-time.After(m.opts.Pause):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}

	logger.Infof("harvest complete: %d fetched, %d skipped", stats.Fetched, stats.Skipped)
	return stats, nil
}

func (m *Manager) fetchWithRetry(ctx context.Context, day time.Time) (data.HistoryRow, error) {
	var lastErr error
	for attempt := 0; attempt < m.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := m.opts.Backoff << (attempt - 1)
			logger.Infof("retrying %s in %s (attempt %d/%d)", day.Format("2006-01-02"), delay, attempt+1, m.opts.MaxRetries)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return data.HistoryRow{}, ctx.Err()
			}
		}

		row, err := m.fetcher.FetchDay(ctx, day)
		if err == nil {
			return row, nil
		}
		lastErr = err
	}
	return data.HistoryRow{}, lastErr
}

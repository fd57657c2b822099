package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/storage/memory"
)

// scriptedFetcher fails a day the configured number of times before
// succeeding, and counts every call.
type scriptedFetcher struct {
	failures map[string]int
	calls    int
}

func (f *scriptedFetcher) FetchDay(_ context.Context, day time.Time) (data.HistoryRow, error) {
	f.calls++
	key := day.Format("2006-01-02")
	if f.failures[key] > 0 {
		f.failures[key]--
		return data.HistoryRow{}, errors.New("transient upstream error")
	}
	return data.HistoryRow{Date: day, Close: 100, DVOL: 0.6}, nil
}

func testOptions() Options {
	return Options{MaxRetries: 3, Backoff: 0, Pause: 0}
}

func day(d int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestRunHarvestsRange(t *testing.T) {
	fetcher := &scriptedFetcher{}
	history := memory.NewHistoryStore()
	progress := memory.NewProgressStore()
	mgr := NewManager(fetcher, history, progress, testOptions())

	stats, err := mgr.Run(context.Background(), day(0), day(4))
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Fetched)
	assert.Equal(t, 0, stats.Skipped)

	rows, err := history.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	n, err := progress.DoneCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	fetcher := &scriptedFetcher{}
	history := memory.NewHistoryStore()
	progress := memory.NewProgressStore()
	mgr := NewManager(fetcher, history, progress, testOptions())

	// First three days were harvested by an earlier run.
	for d := 0; d < 3; d++ {
		require.NoError(t, progress.MarkDone(context.Background(), day(d)))
	}

	stats, err := mgr.Run(context.Background(), day(0), day(4))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 2, fetcher.calls)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	fetcher := &scriptedFetcher{failures: map[string]int{day(1).Format("2006-01-02"): 2}}
	history := memory.NewHistoryStore()
	progress := memory.NewProgressStore()
	mgr := NewManager(fetcher, history, progress, testOptions())

	stats, err := mgr.Run(context.Background(), day(0), day(2))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Fetched)
	// Day 1 took three attempts.
	assert.Equal(t, 5, fetcher.calls)
}

func TestRunAbortsOnPersistentFailure(t *testing.T) {
	fetcher := &scriptedFetcher{failures: map[string]int{day(2).Format("2006-01-02"): 10}}
	history := memory.NewHistoryStore()
	progress := memory.NewProgressStore()
	mgr := NewManager(fetcher, history, progress, testOptions())

	stats, err := mgr.Run(context.Background(), day(0), day(4))
	require.Error(t, err)
	// Days before the failure stay harvested and checkpointed.
	assert.Equal(t, 2, stats.Fetched)
	n, _ := progress.DoneCount(context.Background())
	assert.Equal(t, 2, n)
}

// A row inserted by a run that died before its checkpoint is tolerated
// on the retry.
func TestRunTreatsDuplicateRowAsDone(t *testing.T) {
	fetcher := &scriptedFetcher{}
	history := memory.NewHistoryStore()
	progress := memory.NewProgressStore()
	mgr := NewManager(fetcher, history, progress, testOptions())

	require.NoError(t, history.InsertBulk(context.Background(), []data.HistoryRow{
		{Date: day(1), Close: 100, DVOL: 0.6},
	}))

	stats, err := mgr.Run(context.Background(), day(0), day(2))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Fetched)

	done, err := progress.IsDone(context.Background(), day(1))
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRunRejectsInvertedRange(t *testing.T) {
	mgr := NewManager(&scriptedFetcher{}, memory.NewHistoryStore(), memory.NewProgressStore(), testOptions())
	_, err := mgr.Run(context.Background(), day(3), day(0))
	require.Error(t, err)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := NewManager(&scriptedFetcher{}, memory.NewHistoryStore(), memory.NewProgressStore(), testOptions())
	_, err := mgr.Run(ctx, day(0), day(4))
	assert.ErrorIs(t, err, context.Canceled)
}

package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewCSVProviderJoinsOnDate(t *testing.T) {
	dir := t.TempDir()

	var prices, dvol string
	prices = "Date,Close\n"
	dvol = "Date,DVOL_Close\n"
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 90; i++ {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		prices += d + ",100\n"
		// Leave a hole in the DVOL series on day 70.
		if i != 70 {
			dvol += d + ",60\n"
		}
	}

	prov, err := NewCSVProvider(
		writeFile(t, dir, "prices.csv", prices),
		writeFile(t, dir, "dvol.csv", dvol),
	)
	require.NoError(t, err)

	dates, err := prov.DateRange()
	require.NoError(t, err)
	// 89 joined rows minus the warmup window.
	assert.Len(t, dates, 89-spikeLongWin)

	snap, err := prov.MarketState(dates[0])
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Spot)
	// The DVOL index is quoted in percent.
	assert.Equal(t, 0.6, snap.IV)
}

func TestNewCSVProviderMissingFile(t *testing.T) {
	dir := t.TempDir()
	prices := writeFile(t, dir, "prices.csv", "Date,Close\n2024-01-01,100\n")

	_, err := NewCSVProvider(prices, filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestDateRoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalCSV("2024-03-29"))
	s, err := d.MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-29", s)

	assert.Error(t, d.UnmarshalCSV("29/03/2024"))
}

package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/strike-engine/internal/logger"
)

// Date wraps time.Time so gocsv can parse the YYYY-MM-DD column format
// of the exported history files.
type Date struct {
	time.Time
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (d *Date) UnmarshalCSV(s string) error {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t.UTC()
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (d Date) MarshalCSV() (string, error) {
	return d.Format("2006-01-02"), nil
}

type priceRow struct {
	Date  Date    `csv:"Date"`
	Open  float64 `csv:"Open"`
	High  float64 `csv:"High"`
	Low   float64 `csv:"Low"`
	Close float64 `csv:"Close"`
}

type dvolRow struct {
	Date  Date    `csv:"Date"`
	Close float64 `csv:"DVOL_Close"`
}

// csvProvider serves snapshots from exported price and DVOL CSV files.
type csvProvider struct {
	*series
}

// NewCSVProvider loads a daily spot history and a DVOL history,
// inner-joins them by date and precomputes the derived features.
// DVOL is quoted as an index (75 = 75%) and converted to a decimal.
func NewCSVProvider(priceFile, dvolFile string) (Provider, error) {
	prices, err := readCSV[priceRow](priceFile)
	if err != nil {
		return nil, fmt.Errorf("loading price history: %w", err)
	}
	vols, err := readCSV[dvolRow](dvolFile)
	if err != nil {
		return nil, fmt.Errorf("loading dvol history: %w", err)
	}

	volByDate := make(map[time.Time]float64, len(vols))
	for _, v := range vols {
		volByDate[v.Date.Time] = v.Close / 100.0
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Date.Before(prices[j].Date.Time)
	})

	var (
		dates  []time.Time
		closes []float64
		ivs    []float64
	)
	for _, p := range prices {
		iv, ok := volByDate[p.Date.Time]
		if !ok {
			continue // inner join: both legs required
		}
		if p.Close <= 0 {
			return nil, fmt.Errorf("%w: non-positive close on %s", ErrUnavailable, p.Date.Format("2006-01-02"))
		}
		dates = append(dates, p.Date.Time)
		closes = append(closes, p.Close)
		ivs = append(ivs, iv)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no overlapping price/dvol dates", ErrNoData)
	}

	logger.Infof("loaded %d daily records from %s to %s",
		len(dates), dates[0].Format("2006-01-02"), dates[len(dates)-1].Format("2006-01-02"))

	return &csvProvider{series: buildSeries(dates, closes, ivs)}, nil
}

func readCSV[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []T
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FromRows builds a provider from harvested history rows, the bridge
// between the storage layer and the engine.
func FromRows(rows []HistoryRow) (Provider, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	sorted := make([]HistoryRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	dates := make([]time.Time, len(sorted))
	closes := make([]float64, len(sorted))
	ivs := make([]float64, len(sorted))
	for i, r := range sorted {
		if r.Close <= 0 {
			return nil, fmt.Errorf("%w: non-positive close on %s", ErrUnavailable, r.Date.Format("2006-01-02"))
		}
		dates[i] = r.Date
		closes[i] = r.Close
		ivs[i] = r.DVOL
	}
	return &csvProvider{series: buildSeries(dates, closes, ivs)}, nil
}

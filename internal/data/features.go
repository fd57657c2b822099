package data

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Rolling windows used for derived features, in trading days.
const (
	featureWindow  = 30
	spikeShortWin  = 7
	spikeLongWin   = 60
	annualizedDays = 365
)

// series is an in-memory daily history with precomputed features,
// the backing structure for the CSV, synthetic and store providers.
type series struct {
	snaps []MarketSnapshot // ordered by time ascending
}

// buildSeries derives rolling features from aligned daily closes and
// ATM vols. The first spikeLongWin days are warmup and are dropped, the
// same way the original feature pipeline drops rows with incomplete
// windows.
func buildSeries(dates []time.Time, closes, ivs []float64) *series {
	n := len(dates)
	logReturns := make([]float64, n)
	returns := make([]float64, n)
	for i := 1; i < n; i++ {
		returns[i] = closes[i]/closes[i-1] - 1
		logReturns[i] = math.Log(closes[i] / closes[i-1])
	}

	s := &series{}
	runningMax := 0.0
	for i := 0; i < n; i++ {
		if closes[i] > runningMax {
			runningMax = closes[i]
		}
		if i < spikeLongWin {
			continue
		}

		lw := logReturns[i-featureWindow+1 : i+1]
		rw := returns[i-featureWindow+1 : i+1]

		hv := stat.StdDev(lw, nil) * math.Sqrt(annualizedDays)

		ivShort := stat.Mean(ivs[i-spikeShortWin+1:i+1], nil)
		ivLong := stat.Mean(ivs[i-spikeLongWin+1:i+1], nil)
		volSpike := 0.0
		if ivLong > 0 {
			volSpike = (ivShort - ivLong) / ivLong
		}

		ivhv := 0.0
		if hv > 0 {
			ivhv = ivs[i] / hv
		}

		cum := 0.0
		for _, r := range rw {
			cum += r
		}

		d := dates[i]
		s.snaps = append(s.snaps, MarketSnapshot{
			Time: d,
			Spot: closes[i],
			IV:   ivs[i],
			HV:   hv,
			Features: Features{
				HV30:         hv,
				Skew30:       stat.Skew(rw, nil),
				Kurt30:       stat.ExKurtosis(rw, nil),
				Drawdown:     (closes[i] - runningMax) / runningMax,
				VolSpike:     volSpike,
				IVHVRatio:    ivhv,
				CumReturns30: cum,
				Month:        int(d.Month()),
				Quarter:      (int(d.Month())-1)/3 + 1,
				DayOfWeek:    int(d.Weekday()),
			},
		})
	}
	return s
}

// MarketState returns the snapshot at or immediately before date.
func (s *series) MarketState(date time.Time) (MarketSnapshot, error) {
	if len(s.snaps) == 0 {
		return MarketSnapshot{}, ErrNoData
	}
	// Last snapshot with Time <= date.
	i := sort.Search(len(s.snaps), func(i int) bool {
		return s.snaps[i].Time.After(date)
	})
	if i == 0 {
		return MarketSnapshot{}, ErrNoData
	}
	return s.snaps[i-1], nil
}

// DateRange returns every covered date, ascending.
func (s *series) DateRange() ([]time.Time, error) {
	if len(s.snaps) == 0 {
		return nil, ErrNoData
	}
	out := make([]time.Time, len(s.snaps))
	for i, snap := range s.snaps {
		out[i] = snap.Time
	}
	return out, nil
}

// HighLow returns the spot extremes over [from, to].
func (s *series) HighLow(from, to time.Time) (low, high float64, err error) {
	low, high = math.Inf(1), math.Inf(-1)
	for _, snap := range s.snaps {
		if snap.Time.Before(from) || snap.Time.After(to) {
			continue
		}
		low = math.Min(low, snap.Spot)
		high = math.Max(high, snap.Spot)
	}
	if math.IsInf(low, 1) {
		return 0, 0, ErrNoData
	}
	return low, high, nil
}

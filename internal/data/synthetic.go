package data

import (
	"math"
	"math/rand"
	"time"
)

// NewSyntheticProvider generates a deterministic GBM spot path with a
// mean-reverting vol path, for tests and keyless runs. The same seed
// always yields the same history.
func NewSyntheticProvider(seed int64, start, end time.Time, startPrice float64) Provider {
	rng := rand.New(rand.NewSource(seed))

	var (
		dates  []time.Time
		closes []float64
		ivs    []float64
	)

	price := startPrice
	iv := 0.60
	const (
		dailyVol    = 0.03
		ivMean      = 0.60
		ivRevert    = 0.05
		ivNoise     = 0.02
		ivFloor     = 0.10
		ivCeiling   = 2.50
	)

	for cur := start.UTC(); !cur.After(end.UTC()); cur = cur.AddDate(0, 0, 1) {
		price *= math.Exp(dailyVol*rng.NormFloat64() - 0.5*dailyVol*dailyVol)
		iv += ivRevert*(ivMean-iv) + ivNoise*rng.NormFloat64()
		iv = math.Min(math.Max(iv, ivFloor), ivCeiling)

		dates = append(dates, cur)
		closes = append(closes, price)
		ivs = append(ivs, iv)
	}

	return &csvProvider{series: buildSeries(dates, closes, ivs)}
}

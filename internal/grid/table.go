// Package grid generates the adaptive strike grid: a base table of all
// listable strike levels plus per-query candidate selection that is
// dense near the money and sparse in the wings.
package grid

import (
	"math"
	"sort"

	"github.com/contactkeval/strike-engine/internal/config"
)

// Table is the base ladder of strike levels. Steps grow with the price
// decade so relative density stays constant across price levels.
// A Table is immutable after construction and safe for concurrent use.
type Table struct {
	strikes []float64
	cfg     config.Config
}

// NewTable builds the full ladder for the configured price range.
func NewTable(cfg config.Config) *Table {
	t := &Table{cfg: cfg}

	first := t.Step(cfg.TableMinPrice)
	current := roundSig(math.Ceil(cfg.TableMinPrice/first) * first)

	for current <= cfg.TableMaxPrice {
		t.strikes = append(t.strikes, current)
		current = roundSig(current + t.Step(current))
		if len(t.strikes) > 100_000 {
			break
		}
	}
	return t
}

// Step returns the ladder step at a given price level: the decade
// magnitude times the band multiplier for the normalized mantissa.
func (t *Table) Step(price float64) float64 {
	if price <= 1e-9 {
		return 1e-6
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(price)))
	normalized := math.Round(price/magnitude*1e6) / 1e6

	if normalized < t.cfg.GridThresholdLow {
		return magnitude * t.cfg.GridStepLowMultiplier
	}
	return magnitude * t.cfg.GridStepHighMultiplier
}

// Len returns the number of levels in the ladder.
func (t *Table) Len() int { return len(t.strikes) }

// Strike returns the price at a ladder index.
func (t *Table) Strike(i int) float64 { return t.strikes[i] }

// FindIndex returns the ladder index nearest to price.
func (t *Table) FindIndex(price float64) int {
	n := len(t.strikes)
	i := sort.SearchFloat64s(t.strikes, price)
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	if math.Abs(t.strikes[i-1]-price) < math.Abs(t.strikes[i]-price) {
		return i - 1
	}
	return i
}

// roundSig trims float drift to 8 significant digits so repeated step
// additions land on exact ladder levels.
func roundSig(v float64) float64 {
	if v == 0 {
		return 0
	}
	digits := 8 - 1 - int(math.Floor(math.Log10(math.Abs(v))))
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}

package grid

import (
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/contactkeval/strike-engine/internal/config"
)

// Density is the parabolic allocation weight at a log-moneyness offset.
// It peaks at 1 for k = 0 and falls off with (|k|/spread)^power; the
// result is never negative and strictly decreases away from the peak.
// Step sizing in the distribution walk is the inverse of this weight.
func Density(k, spread, steepness, power float64) float64 {
	if spread <= 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	nd := math.Abs(k) / spread
	return 1 / (1 + steepness*math.Pow(nd, power))
}

// distKey identifies one distribution query after input rounding.
// Rounding spot to 2 decimals and vols to 4 keeps the hit rate high
// during replay without changing results in any visible way.
type distKey struct {
	center int
	spot   float64
	iv     float64
	dte    int
	boost  float64
}

// Distribution selects ladder indices around an ATM center following
// the parabolic density. Results are memoized in a bounded LRU; eviction
// only costs recomputation since the function is pure.
type Distribution struct {
	cfg   config.Config
	table *Table
	cache *lru.Cache[distKey, []int]
}

// NewDistribution builds a distribution over the given ladder.
func NewDistribution(cfg config.Config, table *Table) *Distribution {
	cache, err := lru.New[distKey, []int](cfg.DistributionCacheSize)
	if err != nil {
		// Only possible with a non-positive size, which config
		// validation rejects.
		panic(err)
	}
	return &Distribution{cfg: cfg, table: table, cache: cache}
}

// SigmaMove returns the one-sided log-space half-width of the grid for
// the given vol and horizon: iv^ivPower * years^timePower.
func (d *Distribution) SigmaMove(iv float64, dteDays int) float64 {
	years := math.Max(1.0/365.0, float64(dteDays)/365.0)
	return math.Pow(iv, d.cfg.ParabolaIVPower) * math.Pow(years, d.cfg.ParabolaSigmaTimePower)
}

// Indices returns the sorted ladder indices allocated around center.
// boost widens the covered log-range symmetrically (the volatility-cone
// term for long-dated contracts); pass 0 for no widening.
func (d *Distribution) Indices(center int, spot, iv float64, dteDays int, boost float64) []int {
	key := distKey{
		center: center,
		spot:   math.Round(spot*100) / 100,
		iv:     math.Round(iv*10000) / 10000,
		dte:    dteDays,
		boost:  math.Round(boost*10000) / 10000,
	}
	if cached, ok := d.cache.Get(key); ok {
		return cached
	}

	out := d.compute(key)
	d.cache.Add(key, out)
	return out
}

func (d *Distribution) compute(key distKey) []int {
	halfWidth := d.cfg.ParabolaSigmaMultiplier*d.SigmaMove(key.iv, key.dte) + key.boost

	priceDown := key.spot * math.Exp(-halfWidth)
	priceUp := key.spot * math.Exp(halfWidth)

	rangeDown := key.center - d.table.FindIndex(priceDown)
	rangeUp := d.table.FindIndex(priceUp) - key.center
	maxRange := max(rangeDown, rangeUp)

	// Long-dated boards thin out even at the center.
	dteNorm := float64(key.dte) / 365.0
	baseSkip := max(1, int(1+d.cfg.ParabolaDTEDensityMultiplier*dteNorm))

	// Step grows as the inverse of the parabolic density.
	skip := func(distance int) int {
		if maxRange == 0 {
			return baseSkip
		}
		norm := float64(distance) / float64(maxRange)
		factor := 1 + d.cfg.ParabolaSteepness*math.Pow(norm, d.cfg.ParabolaPower)
		return max(1, int(float64(baseSkip)*factor))
	}

	seen := map[int]bool{key.center: true}

	for idx := key.center; ; {
		dist := key.center - idx
		if dist >= rangeDown {
			break
		}
		idx -= skip(dist)
		if idx < 0 {
			break
		}
		seen[idx] = true
	}

	for idx := key.center; ; {
		dist := idx - key.center
		if dist >= rangeUp {
			break
		}
		idx += skip(dist)
		if idx >= d.table.Len() {
			break
		}
		seen[idx] = true
	}

	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

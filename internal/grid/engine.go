package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/contactkeval/strike-engine/internal/config"
)

// ErrInvalidInput marks grid queries with non-positive spot, vol or DTE.
var ErrInvalidInput = errors.New("invalid grid input")

// Candidate is one prospective strike before magnet stabilization.
type Candidate struct {
	Index        int     // position in the base ladder
	Price        float64 // strike price, strictly increasing within a grid
	LogMoneyness float64 // ln(strike/spot)
	Weight       float64 // parabolic density weight at this offset
}

// Engine produces candidate strike grids for one (spot, iv, dte) triple.
// It owns the base ladder and the distribution cache; a single Engine is
// safe for concurrent readers.
type Engine struct {
	cfg   config.Config
	table *Table
	dist  *Distribution
}

// NewEngine builds a grid engine from the configured ladder.
func NewEngine(cfg config.Config) *Engine {
	table := NewTable(cfg)
	return &Engine{cfg: cfg, table: table, dist: NewDistribution(cfg, table)}
}

// Table exposes the base ladder for index/price translation.
func (e *Engine) Table() *Table { return e.table }

// Generate returns the ordered candidate grid for one expiry.
//
// hv is the annualized realized volatility over the cone lookback
// window; it widens the covered range for long-dated contracts so a
// LEAPS-like chain covers plausible future excursions. Pass 0 when no
// history is available, which disables the cone.
func (e *Engine) Generate(spot, iv, hv float64, dteDays int) ([]Candidate, error) {
	if spot <= 0 {
		return nil, fmt.Errorf("%w: spot %f", ErrInvalidInput, spot)
	}
	if iv < 0 {
		return nil, fmt.Errorf("%w: iv %f", ErrInvalidInput, iv)
	}
	if dteDays <= 0 {
		return nil, fmt.Errorf("%w: dte %d", ErrInvalidInput, dteDays)
	}
	if iv < e.cfg.MinIV {
		iv = e.cfg.MinIV
	}

	years := float64(dteDays) / 365.0
	boost := 0.0
	if hv > 0 {
		boost = e.cfg.ConeMultiplier * hv * math.Sqrt(years)
	}

	center := e.table.FindIndex(spot)
	indices := e.dist.Indices(center, spot, iv, dteDays, boost)

	spread := e.cfg.ParabolaSigmaMultiplier*e.dist.SigmaMove(iv, dteDays) + boost
	lo := spot * e.cfg.MoneynessMin
	hi := spot * e.cfg.MoneynessMax

	out := make([]Candidate, 0, len(indices))
	for _, idx := range indices {
		price := e.table.Strike(idx)
		if price < lo || price > hi {
			continue
		}
		k := math.Log(price / spot)
		out = append(out, Candidate{
			Index:        idx,
			Price:        price,
			LogMoneyness: k,
			Weight:       Density(k, spread, e.cfg.ParabolaSteepness, e.cfg.ParabolaPower),
		})
	}

	out = e.capStrikes(out)
	return out, nil
}

// capStrikes trims the farthest-from-the-money candidates until the
// grid fits the configured budget, preserving price order.
func (e *Engine) capStrikes(cands []Candidate) []Candidate {
	budget := e.cfg.MaxStrikesPerExpiry
	if len(cands) <= budget {
		return cands
	}

	byDistance := make([]Candidate, len(cands))
	copy(byDistance, cands)
	sort.Slice(byDistance, func(i, j int) bool {
		return math.Abs(byDistance[i].LogMoneyness) < math.Abs(byDistance[j].LogMoneyness)
	})

	keep := make(map[int]bool, budget)
	for _, c := range byDistance[:budget] {
		keep[c.Index] = true
	}

	out := cands[:0]
	for _, c := range cands {
		if keep[c.Index] {
			out = append(out, c)
		}
	}
	return out
}

// MagnetStep returns the minimum ladder step used when snapping new
// strikes, coarser for longer-dated contracts.
func MagnetStep(cfg config.Config, dteDays int) int {
	switch {
	case dteDays > cfg.MagnetThresholdLongDTE:
		return cfg.MagnetStepLong
	case dteDays > cfg.MagnetThresholdMidDTE:
		return cfg.MagnetStepMid
	default:
		return cfg.MagnetStepShort
	}
}

// Coarsen snaps candidate indices down to multiples of step and
// deduplicates, keeping the candidate nearest the money for each
// snapped level. Order is preserved.
func (e *Engine) Coarsen(cands []Candidate, step int) []Candidate {
	if step <= 1 {
		return cands
	}
	byLevel := make(map[int]Candidate, len(cands))
	for _, c := range cands {
		level := (c.Index / step) * step
		prev, ok := byLevel[level]
		if !ok || math.Abs(c.LogMoneyness) < math.Abs(prev.LogMoneyness) {
			snapped := c
			snapped.Index = level
			snapped.Price = e.table.Strike(level)
			byLevel[level] = snapped
		}
	}
	out := make([]Candidate, 0, len(byLevel))
	for _, c := range byLevel {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

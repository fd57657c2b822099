// Package chain maintains the persistent strike set of an option chain
// across ticks. Strikes accumulate: once tracked, a strike stays in the
// chain until its expiration passes. The magnet layer snaps new
// candidates onto existing strikes so the visible ladder does not
// jitter on small market moves.
package chain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/grid"
)

var (
	// ErrInvalidInput marks chain queries with malformed inputs.
	ErrInvalidInput = errors.New("invalid chain input")
	// ErrExpired is returned when updating a state whose expiration
	// has already passed.
	ErrExpired = errors.New("expiration has passed")
)

// Layer classifies a tracked strike by how long it has been in the
// chain. Older layers get wider magnet tolerance, so established
// strikes resist replacement by nearby newcomers.
type Layer int

const (
	LayerRecent Layer = iota
	LayerMedium
	LayerOld
)

// MarshalJSON renders the layer as its name; renderers key continuity
// cues off the string form.
func (l Layer) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l Layer) String() string {
	switch l {
	case LayerRecent:
		return "recent"
	case LayerMedium:
		return "medium"
	case LayerOld:
		return "old"
	}
	return "unknown"
}

// TrackedStrike is one strike that has entered the persistent chain.
// Price is immutable for the strike's lifetime.
type TrackedStrike struct {
	Price         float64   `json:"price"`
	FirstSeenTick int       `json:"first_seen_tick"`
	FirstSeen     time.Time `json:"first_seen"`
	Layer         Layer     `json:"layer"`
	// MagnetLocked is set once at least one later candidate has been
	// absorbed into this strike, a continuity cue for rendering.
	MagnetLocked bool `json:"magnet_locked"`
}

// Age returns the strike's age in ticks as of the given tick counter.
func (ts *TrackedStrike) Age(tick int) int { return tick - ts.FirstSeenTick }

// State is the tracked strike set for a single expiration. Callers own
// one State per expiration and thread it through successive chain
// generations; mutations on the same expiration are serialized by the
// embedded mutex.
type State struct {
	mu      sync.Mutex
	expiry  time.Time
	tick    int
	strikes map[float64]*TrackedStrike
}

// NewState creates an empty tracked set for one expiration.
func NewState(expiry time.Time) *State {
	return &State{expiry: expiry, strikes: make(map[float64]*TrackedStrike)}
}

// Expiry returns the expiration date this state tracks.
func (s *State) Expiry() time.Time { return s.expiry }

// Tick returns the number of updates applied so far.
func (s *State) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Len returns the current tracked strike count.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.strikes)
}

// Update advances the state one tick with a fresh candidate grid.
//
// The rules, in order:
//  1. every previously tracked strike survives (accumulation);
//  2. each tracked strike is reclassified into an age layer;
//  3. a candidate within the layer tolerance of a tracked strike is
//     absorbed into it (magnet snap) instead of creating a new one;
//  4. remaining candidates enter the chain as recent strikes.
func (s *State) Update(cfg config.Config, cands []grid.Candidate, now time.Time) error {
	if now.After(s.expiry) {
		return fmt.Errorf("%w: %s", ErrExpired, s.expiry.Format("2006-01-02"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++

	for _, ts := range s.strikes {
		ts.Layer = classify(cfg, ts.Age(s.tick))
	}

	// Sorted snapshot of tracked prices for nearest-neighbor lookup.
	prices := make([]float64, 0, len(s.strikes))
	for p := range s.strikes {
		prices = append(prices, p)
	}
	sort.Float64s(prices)

	for _, c := range cands {
		if c.Price <= 0 {
			return fmt.Errorf("%w: candidate price %f", ErrInvalidInput, c.Price)
		}
		if near := s.nearest(prices, c.Price); near != nil {
			tol := tolerance(cfg, near.Layer) * near.Price
			if abs(c.Price-near.Price) <= tol {
				near.MagnetLocked = true
				continue
			}
		}
		s.strikes[c.Price] = &TrackedStrike{
			Price:         c.Price,
			FirstSeenTick: s.tick,
			FirstSeen:     now,
			Layer:         LayerRecent,
		}
		prices = insertSorted(prices, c.Price)
	}

	return nil
}

// Strikes returns the tracked set ordered by price. The returned copies
// are safe to hold across later updates.
func (s *State) Strikes() []TrackedStrike {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TrackedStrike, 0, len(s.strikes))
	for _, ts := range s.strikes {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// nearest returns the tracked strike closest to price, nil when empty.
func (s *State) nearest(sorted []float64, price float64) *TrackedStrike {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	i := sort.SearchFloat64s(sorted, price)
	switch {
	case i == 0:
		return s.strikes[sorted[0]]
	case i == n:
		return s.strikes[sorted[n-1]]
	}
	if abs(sorted[i-1]-price) <= abs(sorted[i]-price) {
		return s.strikes[sorted[i-1]]
	}
	return s.strikes[sorted[i]]
}

func classify(cfg config.Config, age int) Layer {
	switch {
	case age < cfg.LayerRecentTicks:
		return LayerRecent
	case age < cfg.LayerMediumTicks:
		return LayerMedium
	default:
		return LayerOld
	}
}

func tolerance(cfg config.Config, l Layer) float64 {
	switch l {
	case LayerMedium:
		return cfg.ToleranceMedium
	case LayerOld:
		return cfg.ToleranceOld
	default:
		return cfg.ToleranceRecent
	}
}

func insertSorted(sorted []float64, v float64) []float64 {
	i := sort.SearchFloat64s(sorted, v)
	sorted = append(sorted, 0)
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = v
	return sorted
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package chain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/expiry"
	"github.com/contactkeval/strike-engine/internal/grid"
	"github.com/contactkeval/strike-engine/internal/logger"
)

// Book holds the persistent per-expiration states across successive
// chain generations. The orchestrating layer owns one Book and threads
// it through every tick; different expirations update independently.
type Book struct {
	mu     sync.Mutex
	states map[time.Time]*State
}

// NewBook returns an empty chain book.
func NewBook() *Book {
	return &Book{states: make(map[time.Time]*State)}
}

// State returns the tracked set for an expiration, creating it on
// first sight.
func (b *Book) State(exp time.Time) *State {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[exp]
	if !ok {
		st = NewState(exp)
		b.states[exp] = st
	}
	return st
}

// Prune drops every state whose expiration has passed. Tracked strikes
// live exactly until then.
func (b *Book) Prune(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for exp := range b.states {
		if exp.Before(now) {
			delete(b.states, exp)
			n++
		}
	}
	return n
}

// Len returns the number of live expiration states.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.states)
}

// ExpirationChain is the stabilized ladder for one expiration.
type ExpirationChain struct {
	Entry   expiry.Entry    `json:"entry"`
	DTE     int             `json:"dte"`
	Strikes []TrackedStrike `json:"strikes"` // ordered by price
	Tick    int             `json:"tick"`
}

// Chain is the full generated structure for one market snapshot. The
// same ladder serves calls and puts; sides are resolved by the Greeks
// service.
type Chain struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Spot        float64           `json:"spot"`
	Expirations []ExpirationChain `json:"expirations"`
}

// Service orchestrates calendar, grid and magnet layers into chains.
type Service struct {
	cfg  config.Config
	grid *grid.Engine
}

// NewService builds the strike generation service.
func NewService(cfg config.Config) *Service {
	return &Service{cfg: cfg, grid: grid.NewEngine(cfg)}
}

// Grid exposes the underlying grid engine, shared with the simulator.
func (s *Service) Grid() *grid.Engine { return s.grid }

// GenerateChain answers "what strikes, for which expirations, exist at
// this snapshot". The book carries tracked state between ticks; expired
// states are pruned first, then every calendar expiration gets a fresh
// candidate grid merged into its persistent set.
//
// The query either fully succeeds or fails; no partial chains.
func (s *Service) GenerateChain(snap data.MarketSnapshot, book *Book) (*Chain, error) {
	if snap.Spot <= 0 {
		return nil, fmt.Errorf("%w: spot %f", ErrInvalidInput, snap.Spot)
	}
	if snap.IV < 0 {
		return nil, fmt.Errorf("%w: iv %f", ErrInvalidInput, snap.IV)
	}
	if book == nil {
		return nil, fmt.Errorf("%w: nil book", ErrInvalidInput)
	}

	if n := book.Prune(snap.Time); n > 0 {
		logger.Debugf("pruned %d expired states", n)
	}

	entries := expiry.Generate(s.cfg, snap.Time)
	out := &Chain{GeneratedAt: snap.Time, Spot: snap.Spot}

	for _, entry := range entries {
		dte := expiry.DaysToExpiry(entry.Date, snap.Time)
		if dte <= 0 {
			continue // settles today or already settled; no new board
		}

		cands, err := s.grid.Generate(snap.Spot, snap.IV, snap.HV, dte)
		if err != nil {
			return nil, fmt.Errorf("grid for %s: %w", entry.Date.Format("2006-01-02"), err)
		}
		cands = s.grid.Coarsen(cands, grid.MagnetStep(s.cfg, dte))

		st := book.State(entry.Date)
		if err := st.Update(s.cfg, cands, snap.Time); err != nil {
			return nil, fmt.Errorf("chain update for %s: %w", entry.Date.Format("2006-01-02"), err)
		}

		out.Expirations = append(out.Expirations, ExpirationChain{
			Entry:   entry,
			DTE:     dte,
			Strikes: st.Strikes(),
			Tick:    st.Tick(),
		})
	}

	sort.Slice(out.Expirations, func(i, j int) bool {
		return out.Expirations[i].Entry.Date.Before(out.Expirations[j].Entry.Date)
	})
	return out, nil
}

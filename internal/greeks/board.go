package greeks

import (
	"context"
	"fmt"
	"time"

	"github.com/contactkeval/strike-engine/internal/chain"
	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/expiry"
)

// BoardRow is one strike of an enriched board: both sides' Greeks plus
// the tracked-strike metadata renderers use for continuity cues.
type BoardRow struct {
	Tracked chain.TrackedStrike `json:"tracked"`
	Age     int                 `json:"age"`
	Call    Result              `json:"call"`
	Put     Result              `json:"put"`
}

// ExpirationBoard is the enriched ladder for one expiration.
type ExpirationBoard struct {
	Entry expiry.Entry `json:"entry"`
	DTE   int          `json:"dte"`
	Rows  []BoardRow   `json:"rows"` // ordered by strike
}

// Board is the chain structure handed to the UI/report layer.
type Board struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Spot        float64           `json:"spot"`
	Expirations []ExpirationBoard `json:"expirations"`
}

// EnrichChain resolves both sides' Greeks for every strike of a
// generated chain: one batched predictor call per expiration per side.
// Either the whole board succeeds or the query fails.
func (s *Service) EnrichChain(ctx context.Context, snap data.MarketSnapshot, ch *chain.Chain) (*Board, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil chain", ErrInvalidInput)
	}

	board := &Board{GeneratedAt: ch.GeneratedAt, Spot: ch.Spot}
	for _, exp := range ch.Expirations {
		if len(exp.Strikes) == 0 {
			continue
		}
		strikes := make([]float64, len(exp.Strikes))
		for i, ts := range exp.Strikes {
			strikes[i] = ts.Price
		}

		calls, err := s.Compute(ctx, snap, strikes, exp.DTE, true)
		if err != nil {
			return nil, fmt.Errorf("calls for %s: %w", exp.Entry.Date.Format("2006-01-02"), err)
		}
		puts, err := s.Compute(ctx, snap, strikes, exp.DTE, false)
		if err != nil {
			return nil, fmt.Errorf("puts for %s: %w", exp.Entry.Date.Format("2006-01-02"), err)
		}

		eb := ExpirationBoard{Entry: exp.Entry, DTE: exp.DTE}
		for i, ts := range exp.Strikes {
			eb.Rows = append(eb.Rows, BoardRow{
				Tracked: ts,
				Age:     ts.Age(exp.Tick),
				Call:    calls[i],
				Put:     puts[i],
			})
		}
		board.Expirations = append(board.Expirations, eb)
	}
	return board, nil
}

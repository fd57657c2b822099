// Package greeks computes per-strike option Greeks with the hybrid
// model/closed-form split.
//
// The trained predictor supplies IV, Delta and Vega — the first-order
// quantities it was fitted on real market data for. Gamma, Theta and
// Price come from the Black-Scholes formula seeded with the
// predictor's own IV: closed-form evaluation is numerically exact for
// second-order sensitivities given a volatility input, where the model
// measurably under-performs. The hybrid therefore beats both an
// all-model and an all-closed-form rendition on their weaker halves.
package greeks

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/model"
	"github.com/contactkeval/strike-engine/internal/pricing"
)

var (
	// ErrInvalidInput marks malformed compute queries.
	ErrInvalidInput = errors.New("invalid greeks input")
	// ErrUpstream marks predictor failures propagated to the caller.
	// The service never retries.
	ErrUpstream = errors.New("upstream predictor error")
)

// Result carries the computed risk parameters for one
// (strike, expiration, side, timestamp). Never cached across queries.
type Result struct {
	Strike    float64 `json:"strike"`
	IV        float64 `json:"iv"`    // model
	Delta     float64 `json:"delta"` // model
	Vega      float64 `json:"vega"`  // model
	Gamma     float64 `json:"gamma"` // closed-form
	Theta     float64 `json:"theta"` // closed-form, daily
	Price     float64 `json:"price"` // closed-form
	Moneyness float64 `json:"moneyness"`
}

// Service routes Greeks through the hybrid split.
type Service struct {
	cfg  config.Config
	pred model.Predictor
}

// NewService builds a Greeks service over the given predictor.
func NewService(cfg config.Config, pred model.Predictor) *Service {
	return &Service{cfg: cfg, pred: pred}
}

// Compute evaluates Greeks for every strike in one query. The
// predictor is invoked once, batched over the whole strike vector.
// Results are ordered like the input strikes.
//
// dteDays <= 0 is the settlement boundary, not an error: Price is the
// intrinsic value and all time-value Greeks are zero.
func (s *Service) Compute(ctx context.Context, snap data.MarketSnapshot, strikes []float64, dteDays int, isCall bool) ([]Result, error) {
	if snap.Spot <= 0 {
		return nil, fmt.Errorf("%w: spot %f", ErrInvalidInput, snap.Spot)
	}
	if len(strikes) == 0 {
		return nil, fmt.Errorf("%w: empty strike list", ErrInvalidInput)
	}
	for _, k := range strikes {
		if k <= 0 || math.IsNaN(k) {
			return nil, fmt.Errorf("%w: strike %f", ErrInvalidInput, k)
		}
	}

	if dteDays <= 0 {
		return s.expired(snap.Spot, strikes, isCall), nil
	}

	preds, err := s.pred.Predict(ctx, snap, strikes, dteDays, isCall)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(preds) != len(strikes) {
		return nil, fmt.Errorf("%w: predicted %d of %d strikes", ErrUpstream, len(preds), len(strikes))
	}

	T := float64(dteDays) / 365.0
	out := make([]Result, 0, len(strikes))
	for i, strike := range strikes {
		p := preds[i]

		// The model's IV seeds the closed-form leg; degenerate vols
		// are floored rather than rejected since a dying contract's
		// vanishing vol is an expected end-of-life state.
		sigma := p.IV
		if sigma <= 0 {
			sigma = s.cfg.MinIV
		} else if sigma > s.cfg.MaxIV {
			sigma = s.cfg.MaxIV
		}

		g := pricing.Compute(isCall, snap.Spot, strike, T, s.cfg.RiskFreeRate, sigma)

		out = append(out, Result{
			Strike:    strike,
			IV:        p.IV,
			Delta:     p.Delta,
			Vega:      p.Vega,
			Gamma:     g.Gamma,
			Theta:     g.Theta,
			Price:     g.Price,
			Moneyness: snap.Spot / strike,
		})
	}
	return out, nil
}

// expired returns the settlement-boundary results without touching the
// predictor.
func (s *Service) expired(spot float64, strikes []float64, isCall bool) []Result {
	out := make([]Result, 0, len(strikes))
	for _, strike := range strikes {
		r := Result{
			Strike:    strike,
			Price:     pricing.Intrinsic(isCall, spot, strike),
			Moneyness: spot / strike,
		}
		if isCall && spot > strike {
			r.Delta = 1
		} else if !isCall && strike > spot {
			r.Delta = -1
		}
		out = append(out, r)
	}
	return out
}

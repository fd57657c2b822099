package greeks

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/model"
	"github.com/contactkeval/strike-engine/internal/pricing"
)

// fixedPredictor returns a constant IV for every strike, or a canned
// failure. calls counts invocations.
type fixedPredictor struct {
	iv    float64
	err   error
	short bool
	calls int
}

func (p *fixedPredictor) Predict(_ context.Context, snap data.MarketSnapshot, strikes []float64, dteDays int, isCall bool) ([]model.Prediction, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	n := len(strikes)
	if p.short {
		n--
	}
	out := make([]model.Prediction, 0, n)
	T := float64(dteDays) / 365.0
	for _, k := range strikes[:n] {
		g := pricing.Compute(isCall, snap.Spot, k, T, 0, p.iv)
		out = append(out, model.Prediction{Strike: k, IV: p.iv, Delta: g.Delta, Vega: g.Vega})
	}
	return out, nil
}

func testSnap() data.MarketSnapshot {
	return data.MarketSnapshot{
		Time: time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC),
		Spot: 100_000,
		IV:   0.75,
		HV:   0.6,
	}
}

// Gamma, theta and price must match an independent closed-form
// evaluation seeded with the model's IV.
func TestHybridMatchesClosedForm(t *testing.T) {
	cfg := config.Default()
	pred := &fixedPredictor{iv: 0.7}
	svc := NewService(cfg, pred)

	strikes := []float64{90_000, 100_000, 115_000}
	dte := 30
	results, err := svc.Compute(context.Background(), testSnap(), strikes, dte, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(strikes) {
		t.Fatalf("got %d results for %d strikes", len(results), len(strikes))
	}

	T := float64(dte) / 365.0
	for i, r := range results {
		if r.Strike != strikes[i] {
			t.Fatalf("result %d out of order: strike %f", i, r.Strike)
		}
		want := pricing.Compute(true, 100_000, r.Strike, T, 0, 0.7)
		if math.Abs(r.Gamma-want.Gamma) > 1e-9 {
			t.Fatalf("strike %f: gamma %g, want %g", r.Strike, r.Gamma, want.Gamma)
		}
		if math.Abs(r.Theta-want.Theta) > 1e-9 {
			t.Fatalf("strike %f: theta %g, want %g", r.Strike, r.Theta, want.Theta)
		}
		if math.Abs(r.Price-want.Price) > 1e-6 {
			t.Fatalf("strike %f: price %g, want %g", r.Strike, r.Price, want.Price)
		}
		if r.IV != 0.7 {
			t.Fatalf("strike %f: model iv not preserved, got %f", r.Strike, r.IV)
		}
		if r.Moneyness != 100_000/r.Strike {
			t.Fatalf("strike %f: moneyness %f", r.Strike, r.Moneyness)
		}
	}
	if pred.calls != 1 {
		t.Fatalf("predictor called %d times, want 1 batched call", pred.calls)
	}
}

// At the settlement boundary the predictor must not be consulted.
func TestExpiredBoundarySkipsPredictor(t *testing.T) {
	pred := &fixedPredictor{iv: 0.7}
	svc := NewService(config.Default(), pred)

	results, err := svc.Compute(context.Background(), testSnap(), []float64{90_000, 110_000}, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if pred.calls != 0 {
		t.Fatalf("predictor called %d times at expiry", pred.calls)
	}

	// 90k call is ITM by 10k with step delta, 110k call is worthless.
	if results[0].Price != 10_000 || results[0].Delta != 1 {
		t.Fatalf("itm result: %+v", results[0])
	}
	if results[1].Price != 0 || results[1].Delta != 0 {
		t.Fatalf("otm result: %+v", results[1])
	}
	for _, r := range results {
		if r.Gamma != 0 || r.Theta != 0 || r.Vega != 0 {
			t.Fatalf("expired contract has time-value greeks: %+v", r)
		}
	}
}

func TestUpstreamFailurePropagates(t *testing.T) {
	pred := &fixedPredictor{err: errors.New("model offline")}
	svc := NewService(config.Default(), pred)

	_, err := svc.Compute(context.Background(), testSnap(), []float64{100_000}, 30, true)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if pred.calls != 1 {
		t.Fatalf("service retried: %d calls", pred.calls)
	}
}

func TestShortPredictionIsUpstreamError(t *testing.T) {
	pred := &fixedPredictor{iv: 0.7, short: true}
	svc := NewService(config.Default(), pred)

	_, err := svc.Compute(context.Background(), testSnap(), []float64{90_000, 100_000}, 30, true)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream on length mismatch, got %v", err)
	}
}

func TestComputeValidation(t *testing.T) {
	svc := NewService(config.Default(), &fixedPredictor{iv: 0.7})
	ctx := context.Background()

	bad := testSnap()
	bad.Spot = 0
	if _, err := svc.Compute(ctx, bad, []float64{100_000}, 30, true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero spot: %v", err)
	}
	if _, err := svc.Compute(ctx, testSnap(), nil, 30, true); !errors.Is(err, ErrInvalidInput) {
		t.Fatal("empty strikes accepted")
	}
	if _, err := svc.Compute(ctx, testSnap(), []float64{-1}, 30, true); !errors.Is(err, ErrInvalidInput) {
		t.Fatal("negative strike accepted")
	}
}

// A degenerate model IV is floored for pricing but reported raw.
func TestDegenerateIVFloored(t *testing.T) {
	cfg := config.Default()
	svc := NewService(cfg, &fixedPredictor{iv: 0})

	results, err := svc.Compute(context.Background(), testSnap(), []float64{100_000}, 30, true)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].IV != 0 {
		t.Fatalf("raw model iv rewritten: %f", results[0].IV)
	}
	want := pricing.Compute(true, 100_000, 100_000, 30.0/365.0, 0, cfg.MinIV)
	if math.Abs(results[0].Price-want.Price) > 1e-9 {
		t.Fatalf("price %f not computed at floored iv, want %f", results[0].Price, want.Price)
	}
}

package simulate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/greeks"
	"github.com/contactkeval/strike-engine/internal/grid"
	"github.com/contactkeval/strike-engine/internal/model"
)

func testSimulator() *Simulator {
	cfg := config.Default()
	g := grid.NewEngine(cfg)
	gs := greeks.NewService(cfg, model.NewSmile())
	return NewSimulator(cfg, g, gs)
}

// flatPath returns n+1 days of gently drifting prices and constant IV.
func flatPath(n int, start float64) (prices, ivs []float64) {
	for i := 0; i <= n; i++ {
		prices = append(prices, start*(1+0.001*float64(i)))
		ivs = append(ivs, 0.75)
	}
	return prices, ivs
}

func testDNA(birthDTE int) DNA {
	return DNA{
		AnchorSpot: 100_000,
		AnchorIV:   0.75,
		BirthDTE:   birthDTE,
		BirthTime:  time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC),
		Strike:     105_000,
		Side:       Call,
	}
}

// A contract advanced one day past its 90-day life ends with a single
// terminal point at dte 0 and nothing after.
func TestSeriesEndsAtExpiry(t *testing.T) {
	sim := testSimulator()
	prices, ivs := flatPath(91, 100_000)

	points, err := sim.Series(context.Background(), testDNA(90), prices, ivs, 91)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 91 {
		t.Fatalf("expected 91 points (day 0..90), got %d", len(points))
	}

	last := points[len(points)-1]
	if last.DTE != 0 || !last.Expired {
		t.Fatalf("terminal point dte=%d expired=%t", last.DTE, last.Expired)
	}
	intrinsic := math.Max(0, prices[90]-105_000)
	if last.Result.Price != intrinsic {
		t.Fatalf("terminal price %f, want intrinsic %f", last.Result.Price, intrinsic)
	}
	if last.Result.Gamma != 0 || last.Result.Theta != 0 || last.Result.Vega != 0 {
		t.Fatalf("terminal point has time-value greeks: %+v", last.Result)
	}

	for _, p := range points[:len(points)-1] {
		if p.Expired {
			t.Fatalf("day %d marked expired with dte %d", p.Day, p.DTE)
		}
		if p.Result.Price <= 0 {
			t.Fatalf("day %d: live option priced %f", p.Day, p.Result.Price)
		}
	}
}

func TestSeriesDecaysTowardExpiry(t *testing.T) {
	sim := testSimulator()
	prices, ivs := make([]float64, 31), make([]float64, 31)
	for i := range prices {
		prices[i] = 100_000 // pinned spot isolates time decay
		ivs[i] = 0.75
	}

	points, err := sim.Series(context.Background(), testDNA(30), prices, ivs, 30)
	if err != nil {
		t.Fatal(err)
	}
	first, lastLive := points[0], points[len(points)-2]
	if lastLive.Result.Price >= first.Result.Price {
		t.Fatalf("OTM option did not decay: day0=%f day29=%f", first.Result.Price, lastLive.Result.Price)
	}
}

// The simulated board accumulates: each day's strike set contains the
// previous day's.
func TestBoardsAccumulate(t *testing.T) {
	sim := testSimulator()
	prices, ivs := flatPath(30, 100_000)

	final, history, err := sim.Boards(testDNA(60), prices, ivs, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 31 {
		t.Fatalf("expected 31 board days, got %d", len(history))
	}
	if len(final) == 0 {
		t.Fatal("empty final board")
	}

	for d := 1; d < len(history); d++ {
		have := make(map[float64]bool, len(history[d].Strikes))
		for _, p := range history[d].Strikes {
			have[p] = true
		}
		for _, p := range history[d-1].Strikes {
			if !have[p] {
				t.Fatalf("day %d lost strike %f", d, p)
			}
		}
	}
}

// Past expiry the board freezes at its last pre-settlement shape.
func TestBoardsFreezeAfterExpiry(t *testing.T) {
	sim := testSimulator()
	prices, ivs := flatPath(12, 100_000)

	_, history, err := sim.Boards(testDNA(10), prices, ivs, 12)
	if err != nil {
		t.Fatal(err)
	}
	at9 := history[9].Strikes
	for _, day := range history[10:] {
		if len(day.Strikes) != len(at9) {
			t.Fatalf("board changed after expiry on day %d", day.Day)
		}
	}
}

func TestSeriesValidation(t *testing.T) {
	sim := testSimulator()
	ctx := context.Background()
	prices, ivs := flatPath(10, 100_000)

	bad := testDNA(0)
	if _, err := sim.Series(ctx, bad, prices, ivs, 5); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero birth dte: %v", err)
	}

	short := testDNA(30)
	if _, err := sim.Series(ctx, short, prices[:3], ivs[:3], 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatal("short history accepted")
	}

	zeroStrike := testDNA(30)
	zeroStrike.Strike = 0
	if _, err := sim.Series(ctx, zeroStrike, prices, ivs, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatal("zero strike accepted")
	}
}

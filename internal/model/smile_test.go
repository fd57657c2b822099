package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contactkeval/strike-engine/internal/data"
)

func smileSnap() data.MarketSnapshot {
	return data.MarketSnapshot{
		Time: time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC),
		Spot: 100_000,
		IV:   0.75,
	}
}

func TestSmileATMEqualsSnapshotIV(t *testing.T) {
	m := NewSmile()
	preds, err := m.Predict(context.Background(), smileSnap(), []float64{100_000}, 30, true)
	if err != nil {
		t.Fatal(err)
	}
	if preds[0].IV != 0.75 {
		t.Fatalf("ATM iv = %f, want snapshot iv 0.75", preds[0].IV)
	}
}

// The default smile has negative skew: puts below spot price richer
// vol than symmetric calls above.
func TestSmileSkewShape(t *testing.T) {
	m := NewSmile()
	preds, err := m.Predict(context.Background(), smileSnap(), []float64{80_000, 125_000}, 30, true)
	if err != nil {
		t.Fatal(err)
	}
	if preds[0].IV <= preds[1].IV {
		t.Fatalf("put wing %f not above call wing %f", preds[0].IV, preds[1].IV)
	}
}

func TestSmileFloor(t *testing.T) {
	m := NewSmile()
	snap := smileSnap()
	snap.IV = 0.01

	preds, err := m.Predict(context.Background(), snap, []float64{100_000}, 7, true)
	if err != nil {
		t.Fatal(err)
	}
	if preds[0].IV != m.FloorIV {
		t.Fatalf("iv %f not floored to %f", preds[0].IV, m.FloorIV)
	}
}

func TestSmileDeltaSigns(t *testing.T) {
	m := NewSmile()
	strikes := []float64{90_000, 110_000}

	calls, err := m.Predict(context.Background(), smileSnap(), strikes, 30, true)
	if err != nil {
		t.Fatal(err)
	}
	puts, err := m.Predict(context.Background(), smileSnap(), strikes, 30, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := range strikes {
		if calls[i].Delta <= 0 || calls[i].Delta > 1 {
			t.Fatalf("call delta out of range: %f", calls[i].Delta)
		}
		if puts[i].Delta >= 0 || puts[i].Delta < -1 {
			t.Fatalf("put delta out of range: %f", puts[i].Delta)
		}
		if calls[i].Vega <= 0 {
			t.Fatalf("vega must be positive, got %f", calls[i].Vega)
		}
	}
}

func TestSmileValidation(t *testing.T) {
	m := NewSmile()
	ctx := context.Background()

	bad := smileSnap()
	bad.Spot = 0
	if _, err := m.Predict(ctx, bad, []float64{100_000}, 30, true); !errors.Is(err, ErrPredict) {
		t.Fatalf("zero spot: %v", err)
	}
	if _, err := m.Predict(ctx, smileSnap(), nil, 30, true); !errors.Is(err, ErrPredict) {
		t.Fatal("empty strikes accepted")
	}
	if _, err := m.Predict(ctx, smileSnap(), []float64{0}, 30, true); !errors.Is(err, ErrPredict) {
		t.Fatal("zero strike accepted")
	}
}

package greeks

import (
	"context"
	"testing"
	"time"

	"github.com/contactkeval/strike-engine/internal/chain"
	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/model"
)

func TestEnrichChain(t *testing.T) {
	cfg := config.Default()
	chains := chain.NewService(cfg)
	svc := NewService(cfg, model.NewSmile())

	snap := testSnap()
	snap.Time = time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	ch, err := chains.GenerateChain(snap, chain.NewBook())
	if err != nil {
		t.Fatal(err)
	}

	board, err := svc.EnrichChain(context.Background(), snap, ch)
	if err != nil {
		t.Fatal(err)
	}
	if len(board.Expirations) != len(ch.Expirations) {
		t.Fatalf("board has %d expirations, chain has %d", len(board.Expirations), len(ch.Expirations))
	}

	for i, eb := range board.Expirations {
		if len(eb.Rows) != len(ch.Expirations[i].Strikes) {
			t.Fatalf("%s: %d rows for %d strikes", eb.Entry.Date, len(eb.Rows), len(ch.Expirations[i].Strikes))
		}
		for _, row := range eb.Rows {
			if row.Call.Strike != row.Tracked.Price || row.Put.Strike != row.Tracked.Price {
				t.Fatalf("row strikes misaligned: %+v", row)
			}
			if row.Call.Delta < 0 || row.Put.Delta > 0 {
				t.Fatalf("delta signs wrong at strike %f", row.Tracked.Price)
			}
			if row.Call.Price < 0 || row.Put.Price < 0 {
				t.Fatalf("negative premium at strike %f", row.Tracked.Price)
			}
			if row.Age < 0 {
				t.Fatalf("negative age at strike %f", row.Tracked.Price)
			}
		}
	}
}

func TestEnrichChainNil(t *testing.T) {
	svc := NewService(config.Default(), model.NewSmile())
	if _, err := svc.EnrichChain(context.Background(), testSnap(), nil); err == nil {
		t.Fatal("expected error for nil chain")
	}
}

package grid

import (
	"testing"

	"github.com/contactkeval/strike-engine/internal/config"
)

func TestDensityPeaksAtZeroAndIsSymmetric(t *testing.T) {
	if got := Density(0, 0.5, 15, 1.2); got != 1 {
		t.Fatalf("density at ATM = %f, want 1", got)
	}
	for _, k := range []float64{0.05, 0.2, 0.8} {
		up := Density(k, 0.5, 15, 1.2)
		down := Density(-k, 0.5, 15, 1.2)
		if up != down {
			t.Fatalf("density asymmetric at %f: %f vs %f", k, up, down)
		}
		if up >= 1 {
			t.Fatalf("density at %f should be below the peak, got %f", k, up)
		}
	}
	// Strictly decreasing away from the money.
	if Density(0.1, 0.5, 15, 1.2) <= Density(0.5, 0.5, 15, 1.2) {
		t.Fatal("density not decreasing with distance")
	}
}

func TestSigmaMoveGrowsWithVolAndHorizon(t *testing.T) {
	d := NewDistribution(config.Default(), NewTable(config.Default()))

	if d.SigmaMove(0.8, 30) <= d.SigmaMove(0.5, 30) {
		t.Fatal("sigma move should grow with iv")
	}
	if d.SigmaMove(0.5, 90) <= d.SigmaMove(0.5, 7) {
		t.Fatal("sigma move should grow with dte")
	}
}

func TestIndicesSortedUniqueWithCenter(t *testing.T) {
	cfg := config.Default()
	tbl := NewTable(cfg)
	d := NewDistribution(cfg, tbl)

	center := tbl.FindIndex(100_000)
	idx := d.Indices(center, 100_000, 0.75, 30, 0)
	if len(idx) == 0 {
		t.Fatal("empty index set")
	}

	foundCenter := false
	for i := range idx {
		if idx[i] == center {
			foundCenter = true
		}
		if i > 0 && idx[i] <= idx[i-1] {
			t.Fatalf("indices not strictly ascending at %d", i)
		}
	}
	if !foundCenter {
		t.Fatal("center index missing from distribution")
	}
}

// Adjacent index gaps should widen away from the center: dense near the
// money, sparse in the wings.
func TestIndicesDenserNearCenter(t *testing.T) {
	cfg := config.Default()
	tbl := NewTable(cfg)
	d := NewDistribution(cfg, tbl)

	center := tbl.FindIndex(100_000)
	idx := d.Indices(center, 100_000, 0.75, 90, 0)
	if len(idx) < 5 {
		t.Fatalf("too few indices to compare gaps: %d", len(idx))
	}

	ci := 0
	for i, v := range idx {
		if v == center {
			ci = i
		}
	}
	nearGap := idx[ci+1] - idx[ci]
	farGap := idx[len(idx)-1] - idx[len(idx)-2]
	if nearGap > farGap {
		t.Fatalf("near gap %d exceeds wing gap %d", nearGap, farGap)
	}
}

func TestIndicesCached(t *testing.T) {
	cfg := config.Default()
	tbl := NewTable(cfg)
	d := NewDistribution(cfg, tbl)

	center := tbl.FindIndex(60_000)
	a := d.Indices(center, 60_000, 0.6, 14, 0.02)
	b := d.Indices(center, 60_000, 0.6, 14, 0.02)
	if len(a) != len(b) {
		t.Fatalf("cached result differs in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cached result differs at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

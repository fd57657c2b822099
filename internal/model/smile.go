package model

import (
	"context"
	"fmt"
	"math"

	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/pricing"
)

// Smile is a parametric volatility-smile predictor used for replay and
// tests when the trained network is not deployed. The surface is a
// quadratic in log-moneyness around the snapshot's ATM vol, with the
// skew tilted by the market's realized skewness, and Delta/Vega
// evaluated closed-form from the smile's own IV.
type Smile struct {
	Skew      float64 // linear smile coefficient per unit log-moneyness
	Curvature float64 // quadratic smile coefficient
	FloorIV   float64 // lower clamp on emitted IV
}

// NewSmile returns a smile predictor with BTC-flavored defaults.
func NewSmile() *Smile {
	return &Smile{Skew: -0.10, Curvature: 0.60, FloorIV: 0.05}
}

var _ Predictor = (*Smile)(nil)

// Predict implements Predictor. The call is batched and pure; the same
// inputs always produce the same surface.
func (m *Smile) Predict(_ context.Context, snap data.MarketSnapshot, strikes []float64, dteDays int, isCall bool) ([]Prediction, error) {
	if snap.Spot <= 0 {
		return nil, fmt.Errorf("%w: non-positive spot %f", ErrPredict, snap.Spot)
	}
	if len(strikes) == 0 {
		return nil, fmt.Errorf("%w: empty strike vector", ErrPredict)
	}

	// Market skewness leans the smile: persistent negative return skew
	// steepens the put wing.
	tilt := m.Skew + 0.05*snap.Features.Skew30
	T := float64(dteDays) / 365.0

	out := make([]Prediction, 0, len(strikes))
	for _, strike := range strikes {
		if strike <= 0 {
			return nil, fmt.Errorf("%w: non-positive strike %f", ErrPredict, strike)
		}
		k := math.Log(strike / snap.Spot)
		iv := snap.IV * (1 + tilt*k + m.Curvature*k*k)
		if iv < m.FloorIV {
			iv = m.FloorIV
		}

		g := pricing.Compute(isCall, snap.Spot, strike, T, 0, iv)
		out = append(out, Prediction{
			Strike: strike,
			IV:     iv,
			Delta:  g.Delta,
			Vega:   g.Vega,
		})
	}
	return out, nil
}

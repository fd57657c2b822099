// Package model defines the inference contract of the trained
// volatility-surface predictor. The engine only consumes predictions;
// training and the network itself live outside this repository.
package model

import (
	"context"
	"errors"

	"github.com/contactkeval/strike-engine/internal/data"
)

// ErrPredict marks predictor failures; the Greeks service wraps and
// propagates it without retrying.
var ErrPredict = errors.New("predictor failure")

// Prediction is the model output for one strike: the first-order
// Greeks the network is empirically better at than closed-form.
type Prediction struct {
	Strike float64
	IV     float64 // implied vol, decimal
	Delta  float64
	Vega   float64
}

// Predictor produces per-strike IV/Delta/Vega in one batched call.
// Implementations must accept the full strike vector at once — the
// service never calls per-strike — and must return one prediction per
// requested strike, in request order.
type Predictor interface {
	Predict(ctx context.Context, snap data.MarketSnapshot, strikes []float64, dteDays int, isCall bool) ([]Prediction, error)
}

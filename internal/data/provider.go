// Package data supplies historical market state to the engine.
//
// Providers are authoritative and read-only from the core's point of
// view: the engine never writes back, and never retries — upstream
// failures surface to the caller as ErrUnavailable.
package data

import (
	"errors"
	"time"
)

var (
	// ErrNoData is returned when the requested date precedes or
	// exceeds the provider's coverage.
	ErrNoData = errors.New("no market data for date")
	// ErrUnavailable marks upstream failures (network, malformed
	// payloads). The core performs no retries; that belongs to the
	// orchestrating layer.
	ErrUnavailable = errors.New("market data unavailable")
)

// Features are the rolling model inputs derived from daily history.
// Windows are in trading days.
type Features struct {
	HV30         float64 `json:"hv_30d"`          // annualized realized vol, 30d
	Skew30       float64 `json:"skew_30d"`        // rolling return skewness
	Kurt30       float64 `json:"kurt_30d"`        // rolling excess kurtosis
	Drawdown     float64 `json:"drawdown"`        // distance from running high
	VolSpike     float64 `json:"vol_spike"`       // short/long IV mean divergence
	IVHVRatio    float64 `json:"iv_hv_ratio"`     // implied over realized
	CumReturns30 float64 `json:"cum_returns_30d"` // summed simple returns, 30d
	Month        int     `json:"month"`
	Quarter      int     `json:"quarter"`
	DayOfWeek    int     `json:"day_of_week"`
}

// MarketSnapshot is the observed market state at one timestamp.
// Read-only to the core.
type MarketSnapshot struct {
	Time     time.Time `json:"time"`
	Spot     float64   `json:"spot"`
	IV       float64   `json:"iv"` // ATM implied vol, decimal (0.75 = 75%)
	HV       float64   `json:"hv"` // annualized realized vol over the cone lookback
	Features Features  `json:"features"`
}

// Provider supplies historical market state keyed by date.
type Provider interface {
	// MarketState returns the snapshot at or immediately before date.
	MarketState(date time.Time) (MarketSnapshot, error)
	// DateRange returns the ordered dates the provider covers.
	DateRange() ([]time.Time, error)
	// HighLow returns the spot extremes over [from, to].
	HighLow(from, to time.Time) (low, high float64, err error)
}

// HistoryRow is one harvested day of raw market history: the spot
// candle plus the DVOL close (Deribit's ATM vol index, decimal).
type HistoryRow struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	DVOL   float64   `json:"dvol"`
}

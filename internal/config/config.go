// Package config holds the calibration parameters for the strike-grid and
// Greeks engine. The bundle is built once at startup and treated as
// read-only by every other package.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Config is the full calibration bundle. Zero values are never valid;
// construct via Default() or Load().
type Config struct {
	// Base strike table. The table covers [TableMinPrice, TableMaxPrice]
	// with steps proportional to the price decade.
	TableMinPrice          float64 `json:"table_min_price" validate:"gt=0"`
	TableMaxPrice          float64 `json:"table_max_price" validate:"gtfield=TableMinPrice"`
	GridStepLowMultiplier  float64 `json:"grid_step_low_multiplier" validate:"gt=0"`
	GridStepHighMultiplier float64 `json:"grid_step_high_multiplier" validate:"gt=0"`
	GridThresholdLow       float64 `json:"grid_threshold_low" validate:"gt=0"`
	GridThresholdHigh      float64 `json:"grid_threshold_high" validate:"gt=0"`

	// Parabolic distribution around ATM.
	ParabolaSigmaMultiplier      float64 `json:"parabola_sigma_multiplier" validate:"gt=0"`
	ParabolaSigmaTimePower       float64 `json:"parabola_sigma_time_power" validate:"gt=0"`
	ParabolaIVPower              float64 `json:"parabola_iv_power" validate:"gt=0"`
	ParabolaDTEDensityMultiplier float64 `json:"parabola_dte_density_multiplier" validate:"gte=0"`
	ParabolaSteepness            float64 `json:"parabola_steepness" validate:"gt=0"`
	ParabolaPower                float64 `json:"parabola_power" validate:"gt=0"`
	DistributionCacheSize        int     `json:"distribution_cache_size" validate:"gt=0"`

	// Volatility cone: widens long-dated grids by realized vol.
	ConeMultiplier   float64 `json:"cone_multiplier" validate:"gte=0"`
	ConeLookbackDays int     `json:"cone_lookback_days" validate:"gt=0"`

	// Hard bounds on any generated grid.
	MaxStrikesPerExpiry int     `json:"max_strikes_per_expiry" validate:"gt=0"`
	MoneynessMin        float64 `json:"moneyness_min" validate:"gt=0"`
	MoneynessMax        float64 `json:"moneyness_max" validate:"gtfield=MoneynessMin"`

	// Magnet index-step coarsening by DTE.
	MagnetThresholdLongDTE int `json:"magnet_threshold_long_dte" validate:"gt=0"`
	MagnetThresholdMidDTE  int `json:"magnet_threshold_mid_dte" validate:"gt=0"`
	MagnetStepLong         int `json:"magnet_step_long" validate:"gt=0"`
	MagnetStepMid          int `json:"magnet_step_mid" validate:"gt=0"`
	MagnetStepShort        int `json:"magnet_step_short" validate:"gt=0"`

	// Layer-dependent snap tolerances, as fractions of strike price.
	// Older strikes resist replacement, so tolerance widens with age.
	ToleranceRecent float64 `json:"tolerance_recent" validate:"gt=0"`
	ToleranceMedium float64 `json:"tolerance_medium" validate:"gtefield=ToleranceRecent"`
	ToleranceOld    float64 `json:"tolerance_old" validate:"gtefield=ToleranceMedium"`

	// Layer age thresholds in ticks since first seen.
	LayerRecentTicks int `json:"layer_recent_ticks" validate:"gt=0"`
	LayerMediumTicks int `json:"layer_medium_ticks" validate:"gtfield=LayerRecentTicks"`

	// Expiration calendar shape.
	CalendarDailyCount       int `json:"calendar_daily_count" validate:"gt=0"`
	CalendarWeeklyCount      int `json:"calendar_weekly_count" validate:"gt=0"`
	CalendarMonthlyCount     int `json:"calendar_monthly_count" validate:"gt=0"`
	CalendarQuarterlyHorizon int `json:"calendar_quarterly_horizon_days" validate:"gt=0"`
	CalendarMaxExpirations   int `json:"calendar_max_expirations" validate:"gt=0"`

	// Greeks numerics. RiskFreeRate stays 0 for crypto underlyings
	// (no funding/carry modeled).
	RiskFreeRate float64 `json:"risk_free_rate" validate:"gte=0"`
	MinIV        float64 `json:"min_iv" validate:"gt=0"`
	MaxIV        float64 `json:"max_iv" validate:"gtfield=MinIV"`

	Verbosity int `json:"verbosity,omitempty" validate:"gte=0,lte=3"`
}

// Default returns the calibration used for BTC-denominated chains.
func Default() Config {
	return Config{
		TableMinPrice:          100,
		TableMaxPrice:          5_000_000,
		GridStepLowMultiplier:  0.025,
		GridStepHighMultiplier: 0.050,
		GridThresholdLow:       2.0,
		GridThresholdHigh:      5.0,

		ParabolaSigmaMultiplier:      1.4,
		ParabolaSigmaTimePower:       0.2,
		ParabolaIVPower:              2.0,
		ParabolaDTEDensityMultiplier: 1.0,
		ParabolaSteepness:            15.0,
		ParabolaPower:                1.2,
		DistributionCacheSize:        512,

		ConeMultiplier:   0.5,
		ConeLookbackDays: 30,

		MaxStrikesPerExpiry: 120,
		MoneynessMin:        0.3,
		MoneynessMax:        3.0,

		MagnetThresholdLongDTE: 180,
		MagnetThresholdMidDTE:  30,
		MagnetStepLong:         4,
		MagnetStepMid:          2,
		MagnetStepShort:        1,

		ToleranceRecent: 0.002,
		ToleranceMedium: 0.005,
		ToleranceOld:    0.010,

		LayerRecentTicks: 7,
		LayerMediumTicks: 30,

		CalendarDailyCount:       4,
		CalendarWeeklyCount:      4,
		CalendarMonthlyCount:     3,
		CalendarQuarterlyHorizon: 365,
		CalendarMaxExpirations:   24,

		RiskFreeRate: 0.0,
		MinIV:        0.05,
		MaxIV:        5.0,

		Verbosity: 1,
	}
}

var validate = validator.New()

// Validate checks every numeric knob for dimensional sanity.
// A config that fails validation must never reach the engine.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads a JSON config file, filling unset fields from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

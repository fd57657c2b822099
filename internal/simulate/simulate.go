package simulate

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/strike-engine/internal/chain"
	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/greeks"
	"github.com/contactkeval/strike-engine/internal/grid"
)

// Simulator replays contract lifetimes against historical paths.
type Simulator struct {
	cfg    config.Config
	grid   *grid.Engine
	greeks *greeks.Service
}

// NewSimulator builds a simulator sharing the engine's grid and Greeks
// services.
func NewSimulator(cfg config.Config, g *grid.Engine, gs *greeks.Service) *Simulator {
	return &Simulator{cfg: cfg, grid: g, greeks: gs}
}

// BoardDay is one day of a simulated board evolution.
type BoardDay struct {
	Day     int       `json:"day"`
	Date    time.Time `json:"date"`
	DTE     int       `json:"dte"`
	Strikes []float64 `json:"strikes"` // ordered by price
}

// Boards simulates the strike board from birth through targetDay with
// incremental accumulation: each day's parabolic candidates are magnet
// filtered against the persistent set, and the set only ever grows.
// Days at or past expiry stop contributing candidates; the board stays
// frozen at its last pre-expiry shape.
func (s *Simulator) Boards(dna DNA, priceHist, ivHist []float64, targetDay int) ([]float64, []BoardDay, error) {
	if err := s.checkPath(dna, priceHist, ivHist, targetDay); err != nil {
		return nil, nil, err
	}

	st := chain.NewState(dna.Expiry())
	var history []BoardDay

	for day := 0; day <= targetDay; day++ {
		dte := dna.BirthDTE - day
		date := dna.BirthTime.AddDate(0, 0, day)

		if dte > 0 {
			cands, err := s.grid.Generate(priceHist[day], ivHist[day], s.realizedVol(priceHist[:day+1]), dte)
			if err != nil {
				return nil, nil, fmt.Errorf("day %d: %w", day, err)
			}
			cands = s.grid.Coarsen(cands, grid.MagnetStep(s.cfg, dte))
			if err := st.Update(s.cfg, cands, date); err != nil {
				return nil, nil, fmt.Errorf("day %d: %w", day, err)
			}
		}

		board := st.Strikes()
		prices := make([]float64, len(board))
		for i, ts := range board {
			prices[i] = ts.Price
		}
		history = append(history, BoardDay{Day: day, Date: date, DTE: dte, Strikes: prices})
	}

	final := history[len(history)-1].Strikes
	return final, history, nil
}

// Point is one step of a contract's Greeks trajectory.
type Point struct {
	Day     int           `json:"day"`
	Date    time.Time     `json:"date"`
	DTE     int           `json:"dte"`
	Expired bool          `json:"expired"`
	Result  greeks.Result `json:"result"`
}

// Series simulates one contract's Greeks from birth through targetDay.
// The expiration day itself emits a terminal degenerate point (price at
// intrinsic value, zero time-value Greeks); nothing is emitted past it.
func (s *Simulator) Series(ctx context.Context, dna DNA, priceHist, ivHist []float64, targetDay int) ([]Point, error) {
	if err := s.checkPath(dna, priceHist, ivHist, targetDay); err != nil {
		return nil, err
	}
	if dna.Strike <= 0 {
		return nil, fmt.Errorf("%w: strike %f", ErrInvalidInput, dna.Strike)
	}

	var out []Point
	for day := 0; day <= targetDay; day++ {
		dte := dna.BirthDTE - day
		if dte < 0 {
			break // the terminal point was emitted at dte == 0
		}
		date := dna.BirthTime.AddDate(0, 0, day)

		snap := data.MarketSnapshot{
			Time: date,
			Spot: priceHist[day],
			IV:   ivHist[day],
			HV:   s.realizedVol(priceHist[:day+1]),
		}

		results, err := s.greeks.Compute(ctx, snap, []float64{dna.Strike}, dte, dna.Side.IsCall())
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", day, err)
		}

		out = append(out, Point{
			Day:     day,
			Date:    date,
			DTE:     dte,
			Expired: dte <= 0,
			Result:  results[0],
		})
	}
	return out, nil
}

func (s *Simulator) checkPath(dna DNA, priceHist, ivHist []float64, targetDay int) error {
	if err := dna.Validate(); err != nil {
		return err
	}
	if targetDay < 0 {
		return fmt.Errorf("%w: target day %d", ErrInvalidInput, targetDay)
	}
	if len(priceHist) <= targetDay || len(ivHist) <= targetDay {
		return fmt.Errorf("%w: history shorter than target day %d", ErrInvalidInput, targetDay)
	}
	for i := 0; i <= targetDay; i++ {
		if priceHist[i] <= 0 {
			return fmt.Errorf("%w: non-positive price on day %d", ErrInvalidInput, i)
		}
		if ivHist[i] < 0 {
			return fmt.Errorf("%w: negative iv on day %d", ErrInvalidInput, i)
		}
	}
	return nil
}

// realizedVol annualizes the log-return stddev over the cone lookback
// window, or as much of the path as exists. Too-short paths yield 0,
// which disables the cone.
func (s *Simulator) realizedVol(prices []float64) float64 {
	window := s.cfg.ConeLookbackDays
	if len(prices) < 3 {
		return 0
	}
	if len(prices) > window+1 {
		prices = prices[len(prices)-window-1:]
	}
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		rets = append(rets, math.Log(prices[i]/prices[i-1]))
	}
	return stat.StdDev(rets, nil) * math.Sqrt(365)
}

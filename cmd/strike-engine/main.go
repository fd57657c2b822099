package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/contactkeval/strike-engine/internal/chain"
	"github.com/contactkeval/strike-engine/internal/config"
	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/greeks"
	"github.com/contactkeval/strike-engine/internal/logger"
	"github.com/contactkeval/strike-engine/internal/model"
	"github.com/contactkeval/strike-engine/internal/report"
	"github.com/contactkeval/strike-engine/internal/simulate"
	chstore "github.com/contactkeval/strike-engine/internal/storage/clickhouse"
)

// storeProvider reads the harvested history out of ClickHouse and
// serves it through the in-memory feature pipeline.
func storeProvider(ctx context.Context, dsn string) (data.Provider, error) {
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := chstore.NewHistoryStore(conn).GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return data.FromRows(rows)
}

func main() {
	configPath := flag.String("config", "", "path to JSON config (built-in defaults when empty)")
	rest := flag.Bool("rest", false, "run as REST server (serve chain/simulate queries)")
	port := flag.String("port", ":8080", "REST server listen address")
	priceCSV := flag.String("price-csv", "", "daily price candles CSV")
	dvolCSV := flag.String("dvol-csv", "", "daily DVOL index CSV")
	dateStr := flag.String("date", "", "snapshot date YYYY-MM-DD (default: provider's last date)")
	warmup := flag.Int("warmup", 30, "days replayed through the board before the snapshot")
	outdir := flag.String("out", "out", "report output directory")
	sim := flag.Bool("simulate", false, "simulate one contract instead of generating a chain")
	strike := flag.Float64("strike", 0, "contract strike (simulate mode)")
	side := flag.String("side", "call", "contract side: call or put (simulate mode)")
	birthDTE := flag.Int("birth-dte", 30, "days to expiration at contract birth (simulate mode)")
	days := flag.Int("days", 0, "days to advance from birth (simulate mode, default birth-dte)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}
	logger.SetVerbosity(cfg.Verbosity)

	// choose provider: CSV files, then harvested store, then synthetic
	var prov data.Provider
	var err error
	switch {
	case *priceCSV != "" && *dvolCSV != "":
		prov, err = data.NewCSVProvider(*priceCSV, *dvolCSV)
		if err != nil {
			log.Fatalf("loading csv history: %v", err)
		}
		logger.Infof("csv provider enabled (%s)", *priceCSV)
	case os.Getenv("CLICKHOUSE_DSN") != "":
		prov, err = storeProvider(context.Background(), os.Getenv("CLICKHOUSE_DSN"))
		if err != nil {
			log.Fatalf("loading stored history: %v", err)
		}
		logger.Infof("harvested-store provider enabled")
	default:
		end := time.Now().UTC().Truncate(24 * time.Hour)
		prov = data.NewSyntheticProvider(42, end.AddDate(-2, 0, 0), end, 60_000)
		logger.Infof("synthetic provider enabled")
	}

	app := &application{
		cfg:    cfg,
		prov:   prov,
		chains: chain.NewService(cfg),
		book:   chain.NewBook(),
	}
	app.greeks = greeks.NewService(cfg, model.NewSmile())
	app.sim = simulate.NewSimulator(cfg, app.chains.Grid(), app.greeks)

	if *rest {
		mux := http.NewServeMux()
		mux.HandleFunc("/chain", app.handleChain)
		mux.HandleFunc("/simulate", app.handleSimulate)
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		logger.Infof("starting REST server on %s", *port)
		log.Fatal(http.ListenAndServe(*port, mux))
		return
	}

	date, err := app.resolveDate(*dateStr)
	if err != nil {
		log.Fatalf("resolving date: %v", err)
	}
	if err := os.MkdirAll(*outdir, 0755); err != nil {
		log.Fatalf("creating output dir %s: %v", *outdir, err)
	}

	start := time.Now()
	if *sim {
		n := *days
		if n <= 0 {
			n = *birthDTE
		}
		points, boards, err := app.runSimulation(*strike, *side, *birthDTE, date, n)
		if err != nil {
			log.Fatalf("simulation failed: %v", err)
		}
		_ = report.WriteSeriesJSON(points, *outdir)
		_ = report.WriteSeriesCSV(points, *outdir)
		_ = report.WriteBoardHistoryJSON(boards, *outdir)
		logger.Infof("finished in %v, wrote %d points to %s", time.Since(start), len(points), *outdir)
		return
	}

	board, err := app.runChain(date, *warmup)
	if err != nil {
		log.Fatalf("chain generation failed: %v", err)
	}
	_ = report.WriteBoardJSON(board, *outdir)
	_ = report.WriteBoardCSV(board, *outdir)
	logger.Infof("finished in %v, wrote %d expirations to %s", time.Since(start), len(board.Expirations), *outdir)
}

type application struct {
	cfg    config.Config
	prov   data.Provider
	chains *chain.Service
	book   *chain.Book
	greeks *greeks.Service
	sim    *simulate.Simulator
}

func (a *application) resolveDate(s string) (time.Time, error) {
	if s != "" {
		return time.Parse("2006-01-02", s)
	}
	dates, err := a.prov.DateRange()
	if err != nil {
		return time.Time{}, err
	}
	if len(dates) == 0 {
		return time.Time{}, fmt.Errorf("provider covers no dates")
	}
	return dates[len(dates)-1], nil
}

// runChain replays warmup days through the board so the snapshot's
// chain carries realistic layer ages, then enriches it with Greeks.
func (a *application) runChain(date time.Time, warmup int) (*greeks.Board, error) {
	for d := warmup; d > 0; d-- {
		snap, err := a.prov.MarketState(date.AddDate(0, 0, -d))
		if err != nil {
			continue // before provider coverage; the board just starts later
		}
		if _, err := a.chains.GenerateChain(snap, a.book); err != nil {
			return nil, fmt.Errorf("warmup day -%d: %w", d, err)
		}
	}

	snap, err := a.prov.MarketState(date)
	if err != nil {
		return nil, err
	}
	ch, err := a.chains.GenerateChain(snap, a.book)
	if err != nil {
		return nil, err
	}
	return a.greeks.EnrichChain(context.Background(), snap, ch)
}

func (a *application) runSimulation(strike float64, side string, birthDTE int, birth time.Time, days int) ([]simulate.Point, []simulate.BoardDay, error) {
	s := simulate.Call
	if side == "put" {
		s = simulate.Put
	}

	birthSnap, err := a.prov.MarketState(birth)
	if err != nil {
		return nil, nil, err
	}
	if strike <= 0 {
		// Nearest table strike to spot when none is given.
		tbl := a.chains.Grid().Table()
		strike = tbl.Strike(tbl.FindIndex(birthSnap.Spot))
	}

	prices, ivs, err := a.histories(birth, days)
	if err != nil {
		return nil, nil, err
	}

	dna := simulate.DNA{
		AnchorSpot: birthSnap.Spot,
		AnchorIV:   birthSnap.IV,
		BirthDTE:   birthDTE,
		BirthTime:  birth,
		Strike:     strike,
		Side:       s,
	}

	points, err := a.sim.Series(context.Background(), dna, prices, ivs, days)
	if err != nil {
		return nil, nil, err
	}
	_, boards, err := a.sim.Boards(dna, prices, ivs, days)
	if err != nil {
		return nil, nil, err
	}
	return points, boards, nil
}

// histories collects the spot and IV paths for days 0..n from the
// provider, one snapshot per calendar day.
func (a *application) histories(start time.Time, n int) (prices, ivs []float64, err error) {
	for day := 0; day <= n; day++ {
		snap, err := a.prov.MarketState(start.AddDate(0, 0, day))
		if err != nil {
			return nil, nil, fmt.Errorf("day %d: %w", day, err)
		}
		prices = append(prices, snap.Spot)
		ivs = append(ivs, snap.IV)
	}
	return prices, ivs, nil
}

func (a *application) handleChain(w http.ResponseWriter, r *http.Request) {
	date, err := a.resolveDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	warmup := 0 // the server's book accumulates across requests
	board, err := a.runChain(date, warmup)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(board)
}

func (a *application) handleSimulate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	birth, err := a.resolveDate(q.Get("birth"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	strike, _ := strconv.ParseFloat(q.Get("strike"), 64)
	birthDTE, err := strconv.Atoi(q.Get("birth_dte"))
	if err != nil || birthDTE <= 0 {
		http.Error(w, "birth_dte must be a positive integer", http.StatusBadRequest)
		return
	}
	days, _ := strconv.Atoi(q.Get("days"))
	if days <= 0 {
		days = birthDTE
	}

	points, _, err := a.runSimulation(strike, q.Get("side"), birthDTE, birth, days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(points)
}

package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/contactkeval/strike-engine/internal/data"
	"github.com/contactkeval/strike-engine/internal/harvest"
	"github.com/contactkeval/strike-engine/internal/logger"
	"github.com/contactkeval/strike-engine/internal/storage"
	chstore "github.com/contactkeval/strike-engine/internal/storage/clickhouse"
	"github.com/contactkeval/strike-engine/internal/storage/memory"
	"github.com/contactkeval/strike-engine/internal/storage/migrations"
	pgstore "github.com/contactkeval/strike-engine/internal/storage/postgres"
)

func main() {
	currency := flag.String("currency", "BTC", "underlying currency (BTC or ETH)")
	fromStr := flag.String("from", "", "first day to harvest, YYYY-MM-DD")
	toStr := flag.String("to", "", "last day to harvest, YYYY-MM-DD (default: yesterday)")
	outdir := flag.String("out", "", "export harvested history as provider CSVs")
	verbosity := flag.Int("v", 1, "log verbosity 0..3")
	flag.Parse()

	logger.SetVerbosity(*verbosity)

	if *fromStr == "" {
		log.Fatalf("-from is required")
	}
	from, err := time.Parse("2006-01-02", *fromStr)
	if err != nil {
		log.Fatalf("parsing -from: %v", err)
	}
	to := time.Now().UTC().AddDate(0, 0, -1)
	if *toStr != "" {
		to, err = time.Parse("2006-01-02", *toStr)
		if err != nil {
			log.Fatalf("parsing -to: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, progress, cleanup, err := openStores(ctx)
	if err != nil {
		log.Fatalf("opening stores: %v", err)
	}
	defer cleanup()

	mgr := harvest.NewManager(data.NewDeribitFetcher(*currency), history, progress, harvest.DefaultOptions())
	stats, err := mgr.Run(ctx, from, to)
	if err != nil {
		log.Fatalf("harvest failed after %d days: %v", stats.Fetched, err)
	}

	if *outdir != "" {
		if err := exportCSV(ctx, history, *outdir); err != nil {
			log.Fatalf("exporting csv: %v", err)
		}
		logger.Infof("exported history to %s", *outdir)
	}
}

// openStores connects ClickHouse for history and Postgres for progress
// when DSNs are configured, falling back to memory stores otherwise.
// Memory stores make -out the only durable output of the run.
func openStores(ctx context.Context) (storage.HistoryStore, storage.ProgressStore, func(), error) {
	cleanup := func() {}

	chDSN := os.Getenv("CLICKHOUSE_DSN")
	pgDSN := os.Getenv("POSTGRES_DSN")
	if chDSN == "" || pgDSN == "" {
		logger.Infof("no database DSNs configured, using in-memory stores")
		return memory.NewHistoryStore(), memory.NewProgressStore(), cleanup, nil
	}

	conn, err := chstore.NewConn(ctx, chDSN)
	if err != nil {
		return nil, nil, cleanup, err
	}
	if err := migrations.RunClickhouse(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, cleanup, err
	}

	pool, err := pgstore.NewPool(ctx, pgDSN)
	if err != nil {
		conn.Close()
		return nil, nil, cleanup, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, cleanup, err
	}

	cleanup = func() {
		conn.Close()
		pool.Close()
	}
	return chstore.NewHistoryStore(conn), pgstore.NewProgressStore(pool), cleanup, nil
}

// exportCSV writes the stored history in the two-file layout the CSV
// provider reads: daily closes and the DVOL index, both keyed by date.
func exportCSV(ctx context.Context, history storage.HistoryStore, outdir string) error {
	rows, err := history.GetAll(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}

	prices, err := os.Create(filepath.Join(outdir, "prices.csv"))
	if err != nil {
		return err
	}
	defer prices.Close()
	pw := csv.NewWriter(prices)
	defer pw.Flush()
	if err := pw.Write([]string{"Date", "Close"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := pw.Write([]string{r.Date.Format("2006-01-02"), fmt.Sprintf("%.2f", r.Close)}); err != nil {
			return err
		}
	}

	dvol, err := os.Create(filepath.Join(outdir, "dvol.csv"))
	if err != nil {
		return err
	}
	defer dvol.Close()
	dw := csv.NewWriter(dvol)
	defer dw.Flush()
	if err := dw.Write([]string{"Date", "DVOL_Close"}); err != nil {
		return err
	}
	for _, r := range rows {
		// Stored in decimals; the provider divides the index by 100.
		if err := dw.Write([]string{r.Date.Format("2006-01-02"), fmt.Sprintf("%.4f", r.DVOL*100)}); err != nil {
			return err
		}
	}
	return nil
}

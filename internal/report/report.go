// Package report writes generated boards and simulation series to disk.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/contactkeval/strike-engine/internal/greeks"
	"github.com/contactkeval/strike-engine/internal/simulate"
)

func WriteBoardJSON(board *greeks.Board, outdir string) error {
	b, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, "board.json"), b, 0644)
}

func WriteBoardCSV(board *greeks.Board, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, "board.csv"))
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	headers := []string{"expiry", "kind", "dte", "strike", "layer", "age", "call_iv", "call_delta", "call_vega", "call_gamma", "call_theta", "call_price", "put_iv", "put_delta", "put_vega", "put_gamma", "put_theta", "put_price"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, exp := range board.Expirations {
		for _, row := range exp.Rows {
			rec := []string{
				exp.Entry.Date.Format("2006-01-02"),
				exp.Entry.Kind.String(),
				fmt.Sprintf("%d", exp.DTE),
				fmt.Sprintf("%.2f", row.Tracked.Price),
				row.Tracked.Layer.String(),
				fmt.Sprintf("%d", row.Age),
				fmt.Sprintf("%.4f", row.Call.IV), fmt.Sprintf("%.4f", row.Call.Delta), fmt.Sprintf("%.4f", row.Call.Vega),
				fmt.Sprintf("%.6f", row.Call.Gamma), fmt.Sprintf("%.4f", row.Call.Theta), fmt.Sprintf("%.2f", row.Call.Price),
				fmt.Sprintf("%.4f", row.Put.IV), fmt.Sprintf("%.4f", row.Put.Delta), fmt.Sprintf("%.4f", row.Put.Vega),
				fmt.Sprintf("%.6f", row.Put.Gamma), fmt.Sprintf("%.4f", row.Put.Theta), fmt.Sprintf("%.2f", row.Put.Price),
			}
			_ = w.Write(rec)
		}
	}
	return nil
}

func WriteSeriesJSON(points []simulate.Point, outdir string) error {
	b, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, "series.json"), b, 0644)
}

func WriteSeriesCSV(points []simulate.Point, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, "series.csv"))
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	headers := []string{"day", "date", "dte", "expired", "iv", "delta", "vega", "gamma", "theta", "price", "moneyness"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			fmt.Sprintf("%d", p.Day),
			p.Date.Format("2006-01-02"),
			fmt.Sprintf("%d", p.DTE),
			fmt.Sprintf("%t", p.Expired),
			fmt.Sprintf("%.4f", p.Result.IV),
			fmt.Sprintf("%.4f", p.Result.Delta),
			fmt.Sprintf("%.4f", p.Result.Vega),
			fmt.Sprintf("%.6f", p.Result.Gamma),
			fmt.Sprintf("%.4f", p.Result.Theta),
			fmt.Sprintf("%.2f", p.Result.Price),
			fmt.Sprintf("%.4f", p.Result.Moneyness),
		}
		_ = w.Write(rec)
	}
	return nil
}

func WriteBoardHistoryJSON(days []simulate.BoardDay, outdir string) error {
	b, err := json.MarshalIndent(days, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, "boards.json"), b, 0644)
}

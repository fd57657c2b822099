package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/contactkeval/strike-engine/internal/logger"
)

// HistoryFetcher pulls raw daily history rows from a remote source.
// Implemented by the Deribit client below; the harvest pipeline is the
// only consumer.
type HistoryFetcher interface {
	FetchDay(ctx context.Context, day time.Time) (HistoryRow, error)
}

// deribitFetcher reads daily candles and the DVOL index from Deribit's
// public HTTP API. No authentication is required for historical reads.
type deribitFetcher struct {
	baseURL  string
	currency string
	client   *http.Client
}

// NewDeribitFetcher builds a fetcher for one currency ("BTC" or "ETH").
func NewDeribitFetcher(currency string) HistoryFetcher {
	return &deribitFetcher{
		baseURL:  "https://www.deribit.com/api/v2",
		currency: currency,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchDay returns the spot candle and DVOL close for one UTC day.
func (f *deribitFetcher) FetchDay(ctx context.Context, day time.Time) (HistoryRow, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	startMs := day.UnixMilli()
	endMs := day.Add(24 * time.Hour).UnixMilli()

	row := HistoryRow{Date: day}

	candle, err := f.fetchCandle(ctx, startMs, endMs)
	if err != nil {
		return HistoryRow{}, fmt.Errorf("%w: candle for %s: %v", ErrUnavailable, day.Format("2006-01-02"), err)
	}
	row.Open, row.High, row.Low, row.Close, row.Volume = candle.open, candle.high, candle.low, candle.close, candle.volume

	dvol, err := f.fetchDVOL(ctx, startMs, endMs)
	if err != nil {
		return HistoryRow{}, fmt.Errorf("%w: dvol for %s: %v", ErrUnavailable, day.Format("2006-01-02"), err)
	}
	row.DVOL = dvol

	logger.Tracef("fetched %s close=%.2f dvol=%.4f", day.Format("2006-01-02"), row.Close, row.DVOL)
	return row, nil
}

type candle struct {
	open, high, low, close, volume float64
}

func (f *deribitFetcher) fetchCandle(ctx context.Context, startMs, endMs int64) (candle, error) {
	q := url.Values{}
	q.Set("instrument_name", f.currency+"-PERPETUAL")
	q.Set("start_timestamp", strconv.FormatInt(startMs, 10))
	q.Set("end_timestamp", strconv.FormatInt(endMs-1, 10))
	q.Set("resolution", "1D")

	var body struct {
		Result struct {
			Status string    `json:"status"`
			Open   []float64 `json:"open"`
			High   []float64 `json:"high"`
			Low    []float64 `json:"low"`
			Close  []float64 `json:"close"`
			Volume []float64 `json:"volume"`
		} `json:"result"`
	}
	if err := f.getJSON(ctx, "/public/get_tradingview_chart_data", q, &body); err != nil {
		return candle{}, err
	}
	if body.Result.Status != "ok" || len(body.Result.Close) == 0 {
		return candle{}, fmt.Errorf("empty chart response")
	}
	return candle{
		open:   body.Result.Open[0],
		high:   body.Result.High[0],
		low:    body.Result.Low[0],
		close:  body.Result.Close[0],
		volume: body.Result.Volume[0],
	}, nil
}

func (f *deribitFetcher) fetchDVOL(ctx context.Context, startMs, endMs int64) (float64, error) {
	q := url.Values{}
	q.Set("currency", f.currency)
	q.Set("start_timestamp", strconv.FormatInt(startMs, 10))
	q.Set("end_timestamp", strconv.FormatInt(endMs-1, 10))
	q.Set("resolution", "86400")

	// Each datum is [timestamp_ms, open, high, low, close].
	var body struct {
		Result struct {
			Data [][]float64 `json:"data"`
		} `json:"result"`
	}
	if err := f.getJSON(ctx, "/public/get_volatility_index_data", q, &body); err != nil {
		return 0, err
	}
	if len(body.Result.Data) == 0 || len(body.Result.Data[0]) < 5 {
		return 0, fmt.Errorf("empty dvol response")
	}
	// DVOL is an index (75 = 75%); the engine works in decimals.
	return body.Result.Data[0][4] / 100.0, nil
}

func (f *deribitFetcher) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

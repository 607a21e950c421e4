// Package yahoo retrieves daily OHLCV history from Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// HistoryFetcher returns daily bars for a Yahoo symbol over a Yahoo period
// ("1mo", "1y", "max", ...)
type HistoryFetcher func(symbol, period string) ([]domain.PriceBar, error)

// Client implements domain.MarketDataProvider on top of go-yfinance
type Client struct {
	fetch HistoryFetcher
	now   func() time.Time
	log   zerolog.Logger
}

// NewClient creates a Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return NewClientWithFetcher(fetchHistory, log)
}

// NewClientWithFetcher creates a client using fetch for retrieval
func NewClientWithFetcher(fetch HistoryFetcher, log zerolog.Logger) *Client {
	return &Client{
		fetch: fetch,
		now:   time.Now,
		log:   log.With().Str("client", "yahoo").Logger(),
	}
}

// fetchHistory is the go-yfinance backed HistoryFetcher
func fetchHistory(symbol, period string) ([]domain.PriceBar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	}

	bars, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical prices: %w", err)
	}

	out := make([]domain.PriceBar, 0, len(bars))
	for _, bar := range bars {
		out = append(out, domain.PriceBar{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}
	return out, nil
}

// FetchPrices returns daily bars for symbol dated within [start, end].
// go-yfinance has no context support, so cancellation abandons the call
// rather than interrupting it.
func (c *Client) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Reason: "empty symbol"}
	}
	if end.Before(start) {
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Reason: "end date before start date"}
	}

	period := periodFor(start, c.now())

	type fetchResult struct {
		bars []domain.PriceBar
		err  error
	}
	done := make(chan fetchResult, 1)
	go func() {
		bars, err := c.fetch(symbol, period)
		done <- fetchResult{bars: bars, err: err}
	}()

	var res fetchResult
	select {
	case <-ctx.Done():
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Reason: "fetch cancelled", Err: ctx.Err()}
	case res = <-done:
	}

	if res.err != nil {
		c.log.Warn().Err(res.err).Str("symbol", symbol).Msg("Yahoo history fetch failed")
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Err: res.err}
	}

	series := domain.PriceSeries{Symbol: symbol, Bars: filterRange(res.bars, start, end)}
	if series.Len() == 0 {
		return domain.PriceSeries{}, &domain.DataUnavailableError{
			Symbol: symbol,
			Reason: fmt.Sprintf("no bars between %s and %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		}
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("period", period).
		Int("bars", series.Len()).
		Msg("Fetched price history")

	return series, nil
}

// periodFor picks the shortest Yahoo period reaching back to start
func periodFor(start, now time.Time) string {
	age := now.Sub(start)
	day := 24 * time.Hour
	switch {
	case age <= 5*day:
		return "5d"
	case age <= 30*day:
		return "1mo"
	case age <= 90*day:
		return "3mo"
	case age <= 180*day:
		return "6mo"
	case age <= 365*day:
		return "1y"
	case age <= 2*365*day:
		return "2y"
	case age <= 5*365*day:
		return "5y"
	case age <= 10*365*day:
		return "10y"
	default:
		return "max"
	}
}

// filterRange keeps bars whose calendar day lies in [start, end], sorted by
// date with duplicate days and non-positive or non-finite closes dropped
func filterRange(bars []domain.PriceBar, start, end time.Time) []domain.PriceBar {
	from := truncateDay(start)
	to := truncateDay(end)

	out := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		d := truncateDay(b.Date)
		if d.Before(from) || d.After(to) || !(b.Close > 0) || math.IsInf(b.Close, 1) {
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for i, b := range out {
		if i > 0 && truncateDay(b.Date).Equal(truncateDay(deduped[len(deduped)-1].Date)) {
			deduped[len(deduped)-1] = b
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package yahoo

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewClient(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	client := NewClient(log)

	assert.NotNil(t, client)
	assert.NotNil(t, client.fetch)

	// Ensure Client implements MarketDataProvider
	var _ domain.MarketDataProvider = client
}

func TestPeriodFor(t *testing.T) {
	now := date(2024, 6, 30)

	tests := []struct {
		start time.Time
		want  string
	}{
		{date(2024, 6, 28), "5d"},
		{date(2024, 6, 10), "1mo"},
		{date(2024, 4, 15), "3mo"},
		{date(2024, 1, 15), "6mo"},
		{date(2023, 8, 1), "1y"},
		{date(2022, 9, 1), "2y"},
		{date(2020, 1, 1), "5y"},
		{date(2016, 1, 1), "10y"},
		{date(1990, 1, 1), "max"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, periodFor(tt.start, now))
		})
	}
}

func TestFilterRange(t *testing.T) {
	bars := []domain.PriceBar{
		{Date: date(2024, 1, 5), Close: 105},
		{Date: date(2024, 1, 1), Close: 100},
		{Date: date(2024, 1, 3), Close: 103},
		{Date: date(2024, 1, 3).Add(14 * time.Hour), Close: 104},
		{Date: date(2024, 1, 4), Close: 0},
		{Date: date(2024, 1, 9), Close: 109},
	}

	got := filterRange(bars, date(2024, 1, 2), date(2024, 1, 5).Add(10*time.Hour))

	require.Len(t, got, 2)
	assert.Equal(t, 104.0, got[0].Close)
	assert.Equal(t, 105.0, got[1].Close)
}

func TestFilterRange_DropsNonFiniteCloses(t *testing.T) {
	bars := []domain.PriceBar{
		{Date: date(2024, 1, 2), Close: 100},
		{Date: date(2024, 1, 3), Close: math.NaN()},
		{Date: date(2024, 1, 4), Close: math.Inf(1)},
		{Date: date(2024, 1, 5), Close: 102},
	}

	got := filterRange(bars, date(2024, 1, 1), date(2024, 1, 31))

	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Close)
	assert.Equal(t, 102.0, got[1].Close)
	assert.NoError(t, domain.PriceSeries{Symbol: "AAPL", Bars: got}.Validate())
}

func TestClient_FetchPrices(t *testing.T) {
	log := zerolog.Nop()
	bars := []domain.PriceBar{
		{Date: date(2024, 1, 2), Close: 100},
		{Date: date(2024, 1, 3), Close: 101},
		{Date: date(2024, 1, 4), Close: 102},
	}

	var gotSymbol, gotPeriod string
	client := NewClientWithFetcher(func(symbol, period string) ([]domain.PriceBar, error) {
		gotSymbol, gotPeriod = symbol, period
		return bars, nil
	}, log)
	client.now = func() time.Time { return date(2024, 1, 10) }

	series, err := client.FetchPrices(context.Background(), " AAPL ", date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", gotSymbol)
	assert.Equal(t, "1mo", gotPeriod)
	assert.Equal(t, "AAPL", series.Symbol)
	assert.Equal(t, 3, series.Len())
	assert.NoError(t, series.Validate())
}

func TestClient_FetchPrices_Errors(t *testing.T) {
	log := zerolog.Nop()

	tests := []struct {
		name   string
		fetch  HistoryFetcher
		symbol string
		start  time.Time
		end    time.Time
	}{
		{
			name:   "empty symbol",
			fetch:  func(string, string) ([]domain.PriceBar, error) { return nil, nil },
			symbol: "  ",
			start:  date(2024, 1, 1),
			end:    date(2024, 2, 1),
		},
		{
			name:   "inverted range",
			fetch:  func(string, string) ([]domain.PriceBar, error) { return nil, nil },
			symbol: "AAPL",
			start:  date(2024, 2, 1),
			end:    date(2024, 1, 1),
		},
		{
			name:   "fetch error",
			fetch:  func(string, string) ([]domain.PriceBar, error) { return nil, errors.New("HTTP 404") },
			symbol: "NOPE",
			start:  date(2024, 1, 1),
			end:    date(2024, 2, 1),
		},
		{
			name: "no bars in range",
			fetch: func(string, string) ([]domain.PriceBar, error) {
				return []domain.PriceBar{{Date: date(2023, 1, 1), Close: 10}}, nil
			},
			symbol: "AAPL",
			start:  date(2024, 1, 1),
			end:    date(2024, 2, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClientWithFetcher(tt.fetch, log)
			_, err := client.FetchPrices(context.Background(), tt.symbol, tt.start, tt.end)

			var dataErr *domain.DataUnavailableError
			assert.True(t, errors.As(err, &dataErr))
		})
	}
}

func TestClient_FetchPrices_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := NewClientWithFetcher(func(string, string) ([]domain.PriceBar, error) {
		<-release
		return nil, nil
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.FetchPrices(ctx, "SLOW", date(2024, 1, 1), date(2024, 2, 1))

	var dataErr *domain.DataUnavailableError
	require.True(t, errors.As(err, &dataErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

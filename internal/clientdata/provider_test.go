package clientdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	series domain.PriceSeries
	err    error
	calls  int
}

func (p *countingProvider) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	p.calls++
	if p.err != nil {
		return domain.PriceSeries{}, p.err
	}
	return p.series, nil
}

var (
	rangeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

func TestCachedProvider_CachesFetches(t *testing.T) {
	inner := &countingProvider{series: testSeries("AAPL")}
	provider := NewCachedProvider(inner, NewRepository(setupTestDB(t)), "yahoo", time.Hour, zerolog.Nop())
	ctx := context.Background()

	first, err := provider.FetchPrices(ctx, "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	second, err := provider.FetchPrices(ctx, "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)

	// A different range is a different entry
	_, err = provider.FetchPrices(ctx, "AAPL", rangeStart, rangeEnd.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProvider_StaleFallback(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Now()
	repo.now = func() time.Time { return base }
	key := CacheKey("yahoo", "AAPL", rangeStart, rangeEnd)
	require.NoError(t, repo.Store(ctx, key, testSeries("AAPL"), time.Minute))
	repo.now = func() time.Time { return base.Add(time.Hour) }

	inner := &countingProvider{err: &domain.DataUnavailableError{Symbol: "AAPL", Reason: "HTTP 503"}}
	provider := NewCachedProvider(inner, repo, "yahoo", time.Hour, zerolog.Nop())

	series, err := provider.FetchPrices(ctx, "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "stale entries trigger a refetch first")
	assert.Equal(t, 2, series.Len())
}

func TestCachedProvider_FetchErrorWithoutCache(t *testing.T) {
	inner := &countingProvider{err: &domain.DataUnavailableError{Symbol: "NOPE"}}
	provider := NewCachedProvider(inner, NewRepository(setupTestDB(t)), "yahoo", 0, zerolog.Nop())

	_, err := provider.FetchPrices(context.Background(), "NOPE", rangeStart, rangeEnd)

	var dataErr *domain.DataUnavailableError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "NOPE", dataErr.Symbol)
	assert.Equal(t, DefaultPriceTTL, provider.ttl)
}

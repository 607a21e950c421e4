package clientdata

import (
	"context"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultPriceTTL is how long a fetched series is served without refetching
const DefaultPriceTTL = 6 * time.Hour

// CachedProvider wraps a domain.MarketDataProvider with the price cache.
// Fresh entries are served directly; when the wrapped provider fails, a stale
// entry is better than no data.
type CachedProvider struct {
	inner  domain.MarketDataProvider
	repo   *Repository
	source string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedProvider creates a caching decorator. source namespaces cache keys
// so different providers never share entries.
func NewCachedProvider(inner domain.MarketDataProvider, repo *Repository, source string, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &CachedProvider{
		inner:  inner,
		repo:   repo,
		source: source,
		ttl:    ttl,
		log:    log.With().Str("component", "price_cache").Str("source", source).Logger(),
	}
}

// FetchPrices returns the cached series for the range when fresh, otherwise
// fetches from the wrapped provider and caches the result
func (p *CachedProvider) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	key := CacheKey(p.source, symbol, start, end)

	cached, err := p.repo.GetIfFresh(ctx, key)
	if err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("Price cache read failed")
	} else if cached != nil {
		p.log.Debug().Str("key", key).Msg("Price cache hit")
		return *cached, nil
	}

	series, fetchErr := p.inner.FetchPrices(ctx, symbol, start, end)
	if fetchErr == nil {
		if err := p.repo.Store(ctx, key, series, p.ttl); err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("Failed to cache price series")
		}
		return series, nil
	}

	stale, err := p.repo.Get(ctx, key)
	if err != nil || stale == nil {
		return domain.PriceSeries{}, fetchErr
	}

	p.log.Warn().
		Err(fetchErr).
		Str("key", key).
		Msg("Fetch failed, serving stale cached prices")
	return *stale, nil
}

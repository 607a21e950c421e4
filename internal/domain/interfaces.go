package domain

import (
	"context"
	"time"
)

// MarketDataProvider retrieves historical OHLCV data.
// Implementations return *DataUnavailableError for every retrieval failure,
// including an empty result for the requested range.
type MarketDataProvider interface {
	// FetchPrices returns daily bars for symbol with dates in [start, end]
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) (PriceSeries, error)
}

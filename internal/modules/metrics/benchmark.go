package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/internal/modules/returns"
	"github.com/rs/zerolog"
)

// BenchmarkLoader fetches benchmark returns for alpha/beta. Every failure
// degrades to "no benchmark" with a warning instead of an error.
type BenchmarkLoader struct {
	provider domain.MarketDataProvider
	timeout  time.Duration
	log      zerolog.Logger
}

// NewBenchmarkLoader creates a loader bounding each fetch by timeout
func NewBenchmarkLoader(provider domain.MarketDataProvider, timeout time.Duration, log zerolog.Logger) *BenchmarkLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BenchmarkLoader{
		provider: provider,
		timeout:  timeout,
		log:      log.With().Str("component", "benchmark_loader").Logger(),
	}
}

// Load returns the benchmark return series for [start, end], or nil and a
// warning describing why it is unavailable.
func (l *BenchmarkLoader) Load(ctx context.Context, symbol string, start, end time.Time) (*domain.ReturnSeries, string) {
	if symbol == "" {
		return nil, "no benchmark symbol configured; alpha and beta not computed"
	}
	if l.provider == nil {
		return nil, fmt.Sprintf("no market data provider for benchmark %s", symbol)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	prices, err := l.provider.FetchPrices(fetchCtx, symbol, start, end)
	if err != nil {
		l.log.Warn().Err(err).Str("benchmark", symbol).Msg("Benchmark fetch failed, continuing without it")
		return nil, fmt.Sprintf("benchmark %s unavailable: %v", symbol, err)
	}

	rets, err := returns.Compute(prices)
	if err != nil {
		l.log.Warn().Err(err).Str("benchmark", symbol).Msg("Benchmark series too short")
		return nil, fmt.Sprintf("benchmark %s unusable: %v", symbol, err)
	}

	return &rets, ""
}

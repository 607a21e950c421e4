// Package analysis runs the full analytics pipeline for one symbol: fetch
// prices, derive returns, compute metrics, simulate risk, optimize and build
// chart data.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/internal/modules/metrics"
	"github.com/aristath/finmetrics/internal/modules/montecarlo"
	"github.com/aristath/finmetrics/internal/modules/optimization"
	"github.com/aristath/finmetrics/internal/modules/returns"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request carries every parameter of one analysis run. Zero values select the
// service defaults.
type Request struct {
	Symbol string
	Start  time.Time
	End    time.Time

	// Benchmark overrides the default benchmark symbol
	Benchmark   string
	NoBenchmark bool

	// RiskFreeRate is annual; nil uses the engine default
	RiskFreeRate *float64

	Simulations int
	Confidence  float64
	Seed        *uint64
}

// Validate checks request parameters
func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return domain.ValidationError{Field: "symbol", Message: "is required"}
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return domain.ValidationError{Field: "start", Message: "start and end dates are required"}
	}
	if !r.End.After(r.Start) {
		return domain.ValidationError{Field: "end", Message: "must be after start"}
	}
	if r.RiskFreeRate != nil && (math.IsNaN(*r.RiskFreeRate) || math.IsInf(*r.RiskFreeRate, 0)) {
		return domain.ValidationError{Field: "risk_free_rate", Message: "must be finite"}
	}
	if r.Simulations < 0 {
		return domain.ValidationError{Field: "simulations", Message: "must not be negative"}
	}
	if r.Confidence != 0 && !(r.Confidence > 0 && r.Confidence < 1) {
		return domain.ValidationError{Field: "confidence", Message: "must be in (0, 1)"}
	}
	return nil
}

// Config holds service defaults
type Config struct {
	BenchmarkSymbol string
	FetchTimeout    time.Duration
}

// Service orchestrates the analytics pipeline. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	provider   domain.MarketDataProvider
	benchmarks *metrics.BenchmarkLoader
	engine     *metrics.Engine
	simulator  *montecarlo.Simulator
	optimizer  *optimization.MVOptimizer
	cfg        Config
	log        zerolog.Logger
	now        func() time.Time
}

// NewService creates an analysis service. provider serves both the asset and
// the benchmark.
func NewService(
	provider domain.MarketDataProvider,
	engine *metrics.Engine,
	simulator *montecarlo.Simulator,
	optimizer *optimization.MVOptimizer,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Service{
		provider:   provider,
		benchmarks: metrics.NewBenchmarkLoader(provider, cfg.FetchTimeout, log),
		engine:     engine,
		simulator:  simulator,
		optimizer:  optimizer,
		cfg:        cfg,
		log:        log.With().Str("service", "analysis").Logger(),
		now:        time.Now,
	}
}

// Analyze runs the pipeline for req.
//
// Errors: domain.ValidationError for bad parameters, *domain.DataUnavailableError
// when the asset cannot be fetched, *domain.InsufficientDataError when fewer
// than two prices are available. A missing benchmark, too few returns for the
// simulation or a solver failure degrade to NaN figures with a warning.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	symbol := strings.TrimSpace(req.Symbol)

	prices, err := s.fetch(ctx, symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	rets, err := returns.Compute(prices)
	if err != nil {
		return nil, fmt.Errorf("compute returns for %s: %w", symbol, err)
	}

	report := &Report{
		id:          uuid.New().String(),
		symbol:      symbol,
		start:       req.Start,
		end:         req.End,
		generatedAt: s.now().UTC(),
		prices:      prices,
		returns:     rets,
	}

	engine := s.engine
	optimizer := s.optimizer
	if req.RiskFreeRate != nil {
		opts := engine.Options()
		opts.RiskFreeRate = *req.RiskFreeRate
		engine = engine.WithOptions(opts)
		optimizer = optimizer.WithRiskFreeRate(*req.RiskFreeRate)
	}

	var benchmark *domain.ReturnSeries
	if !req.NoBenchmark {
		report.benchmark = req.Benchmark
		if report.benchmark == "" {
			report.benchmark = s.cfg.BenchmarkSymbol
		}
		var warning string
		benchmark, warning = s.benchmarks.Load(ctx, report.benchmark, req.Start, req.End)
		report.addWarning(warning)
	}

	record, warnings := engine.Compute(prices, rets, benchmark)
	for _, w := range warnings {
		report.addWarning(w)
	}

	mc, err := s.simulator.Run(ctx, rets.Values(), montecarlo.Params{
		Simulations: req.Simulations,
		Confidence:  req.Confidence,
		Seed:        req.Seed,
	})
	var insufficient *domain.InsufficientDataError
	switch {
	case err == nil:
		record = record.WithMonteCarlo(mc)
		report.monteCarlo = &mc
	case errors.As(err, &insufficient):
		report.addWarning(fmt.Sprintf("monte carlo skipped: %v", err))
	default:
		return nil, err
	}
	report.metrics = record

	portfolio, err := optimizer.Optimize([]string{symbol}, returns.FromValues(rets.Values()))
	var failure *domain.OptimizationFailure
	switch {
	case err == nil:
		report.portfolio = portfolio
	case errors.As(err, &insufficient), errors.As(err, &failure):
		report.addWarning(fmt.Sprintf("portfolio optimization skipped: %v", err))
	default:
		return nil, fmt.Errorf("optimize %s: %w", symbol, err)
	}

	charts := BuildCharts(prices, rets)
	report.charts = &charts

	s.log.Info().
		Str("report_id", report.id).
		Str("symbol", symbol).
		Int("prices", prices.Len()).
		Int("warnings", len(report.warnings)).
		Msg("Analysis completed")

	return report, nil
}

// fetch retrieves and checks the asset's prices within the fetch timeout
func (s *Service) fetch(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	if s.provider == nil {
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Reason: "no market data provider"}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	prices, err := s.provider.FetchPrices(fetchCtx, symbol, start, end)
	if err != nil {
		var dataErr *domain.DataUnavailableError
		if errors.As(err, &dataErr) {
			return domain.PriceSeries{}, err
		}
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Err: err}
	}

	if err := prices.Validate(); err != nil {
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Reason: "invalid price series", Err: err}
	}
	return prices, nil
}

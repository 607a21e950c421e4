// Package metrics computes scalar risk and performance metrics for a single
// asset from its prices, its returns and an optional benchmark.
package metrics

import (
	"fmt"
	"math"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/internal/modules/returns"
	"github.com/aristath/finmetrics/pkg/formulas"
	"github.com/rs/zerolog"
)

// VaRPercentile is the return percentile reported as historical VaR
const VaRPercentile = 5.0

// minBenchmarkVariance treats a benchmark with less variance as constant
const minBenchmarkVariance = 1e-20

// Options holds engine parameters
type Options struct {
	// RiskFreeRate is an annual rate. Alpha and beta subtract
	// RiskFreeRate/PeriodsPerYear from each period return.
	RiskFreeRate   float64
	PeriodsPerYear int
}

// DefaultOptions returns the standard daily-data configuration
func DefaultOptions() Options {
	return Options{
		RiskFreeRate:   0.02,
		PeriodsPerYear: 252,
	}
}

// Engine computes MetricsRecords. It holds no per-request state.
type Engine struct {
	opts Options
	log  zerolog.Logger
}

// NewEngine creates a new metrics engine. A non-positive PeriodsPerYear
// falls back to 252.
func NewEngine(opts Options, log zerolog.Logger) *Engine {
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = 252
	}
	return &Engine{
		opts: opts,
		log:  log.With().Str("component", "metrics_engine").Logger(),
	}
}

// Options returns the engine's configuration
func (e *Engine) Options() Options {
	return e.opts
}

// WithOptions returns an engine sharing the logger but using opts
func (e *Engine) WithOptions(opts Options) *Engine {
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = e.opts.PeriodsPerYear
	}
	return &Engine{opts: opts, log: e.log}
}

// Compute produces the metrics record for prices and their returns.
// benchmark may be nil. Metrics that cannot be computed are NaN and the
// reason is reported in the returned warnings; Compute never fails.
// Monte Carlo fields are left NaN (see MetricsRecord.WithMonteCarlo).
func (e *Engine) Compute(prices domain.PriceSeries, rets domain.ReturnSeries, benchmark *domain.ReturnSeries) (domain.MetricsRecord, []string) {
	record := domain.NewMetricsRecord()
	var warnings []string

	values := rets.Values()
	periods := e.opts.PeriodsPerYear

	record.ROI = formulas.ROI(prices.Closes())

	if len(values) < 2 {
		warnings = append(warnings, fmt.Sprintf("need at least 2 returns for dispersion metrics, got %d", len(values)))
	} else {
		record.StdDev = formulas.StdDev(values)
		record.SharpeRatio = formulas.SharpeRatio(values, periods)
		if record.StdDev == 0 {
			warnings = append(warnings, "returns have zero variance; sharpe ratio is undefined")
		}
	}

	if len(values) > 0 {
		record.VaR = formulas.Percentile(values, VaRPercentile)
		record.MaxDrawdown = formulas.MaxDrawdown(values) * 100
	}

	alpha, beta, warning := e.alphaBeta(rets, benchmark)
	record.Alpha = alpha
	record.Beta = beta
	if warning != "" {
		warnings = append(warnings, warning)
	}

	e.log.Debug().
		Str("symbol", prices.Symbol).
		Int("returns", len(values)).
		Float64("roi", record.ROI).
		Int("warnings", len(warnings)).
		Msg("Computed metrics")

	return record, warnings
}

// ComputeFromPrices derives returns from prices and computes the record.
// It fails only when prices has fewer than two bars.
func (e *Engine) ComputeFromPrices(prices domain.PriceSeries, benchmark *domain.PriceSeries) (domain.MetricsRecord, []string, error) {
	rets, err := returns.Compute(prices)
	if err != nil {
		return domain.MetricsRecord{}, nil, err
	}

	var benchRets *domain.ReturnSeries
	var warnings []string
	if benchmark != nil {
		br, err := returns.Compute(*benchmark)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("benchmark %s unusable: %v", benchmark.Symbol, err))
		} else {
			benchRets = &br
		}
	}

	record, more := e.Compute(prices, rets, benchRets)
	return record, append(warnings, more...), nil
}

// alphaBeta regresses excess asset returns on excess benchmark returns over
// the dates both series share. Beta is cov/var with sample conventions and
// alpha is annualized by PeriodsPerYear.
func (e *Engine) alphaBeta(rets domain.ReturnSeries, benchmark *domain.ReturnSeries) (alpha, beta float64, warning string) {
	nan := math.NaN()
	if benchmark == nil {
		return nan, nan, "benchmark unavailable; alpha and beta not computed"
	}

	asset, bench := returns.Align(rets, *benchmark)
	if asset.Len() < 2 {
		return nan, nan, fmt.Sprintf("benchmark %s overlaps on %d dates; alpha and beta need at least 2", benchmark.Symbol, asset.Len())
	}

	periods := float64(e.opts.PeriodsPerYear)
	rfPerPeriod := e.opts.RiskFreeRate / periods

	excessAsset := asset.Values()
	excessBench := bench.Values()
	for i := range excessAsset {
		excessAsset[i] -= rfPerPeriod
		excessBench[i] -= rfPerPeriod
	}

	benchVar := formulas.Variance(excessBench)
	if benchVar < minBenchmarkVariance {
		return nan, nan, fmt.Sprintf("benchmark %s has zero variance over the overlap; alpha and beta not computed", benchmark.Symbol)
	}

	beta = formulas.Covariance(excessAsset, excessBench) / benchVar
	alpha = (formulas.Mean(excessAsset) - beta*formulas.Mean(excessBench)) * periods
	return alpha, beta, ""
}

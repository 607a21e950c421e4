package analysis

import (
	"encoding/json"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
)

// Report is the read-only result of one analysis run
type Report struct {
	id          string
	symbol      string
	benchmark   string
	start       time.Time
	end         time.Time
	generatedAt time.Time

	prices     domain.PriceSeries
	returns    domain.ReturnSeries
	metrics    domain.MetricsRecord
	monteCarlo *domain.MonteCarloResult
	portfolio  *domain.PortfolioResult
	charts     *ChartData
	warnings   []string
}

func (r *Report) addWarning(w string) {
	if w != "" {
		r.warnings = append(r.warnings, w)
	}
}

// ID returns the unique report identifier
func (r *Report) ID() string { return r.id }

// Symbol returns the analyzed symbol
func (r *Report) Symbol() string { return r.symbol }

// Benchmark returns the benchmark symbol requested, empty when disabled
func (r *Report) Benchmark() string { return r.benchmark }

// Range returns the requested date range
func (r *Report) Range() (start, end time.Time) { return r.start, r.end }

// GeneratedAt returns when the report was produced
func (r *Report) GeneratedAt() time.Time { return r.generatedAt }

// Prices returns a copy of the price series
func (r *Report) Prices() domain.PriceSeries {
	return domain.PriceSeries{
		Symbol: r.prices.Symbol,
		Bars:   append([]domain.PriceBar(nil), r.prices.Bars...),
	}
}

// Returns returns a copy of the return series
func (r *Report) Returns() domain.ReturnSeries {
	return domain.ReturnSeries{
		Symbol: r.returns.Symbol,
		Points: append([]domain.ReturnPoint(nil), r.returns.Points...),
	}
}

// Metrics returns the metrics record, including Monte Carlo figures
func (r *Report) Metrics() domain.MetricsRecord { return r.metrics }

// MonteCarlo returns the simulation result, nil when it was skipped
func (r *Report) MonteCarlo() *domain.MonteCarloResult {
	if r.monteCarlo == nil {
		return nil
	}
	mc := *r.monteCarlo
	return &mc
}

// Portfolio returns the optimized allocation, nil when it was skipped
func (r *Report) Portfolio() *domain.PortfolioResult {
	if r.portfolio == nil {
		return nil
	}
	p := *r.portfolio
	p.Weights = make(map[string]float64, len(r.portfolio.Weights))
	for k, v := range r.portfolio.Weights {
		p.Weights[k] = v
	}
	p.Assets = append([]string(nil), r.portfolio.Assets...)
	return &p
}

// Charts returns the chart data
func (r *Report) Charts() *ChartData { return r.charts }

// Warnings returns the degradations encountered during the run
func (r *Report) Warnings() []string {
	return append([]string(nil), r.warnings...)
}

// MarshalJSON encodes the full report
func (r *Report) MarshalJSON() ([]byte, error) {
	warnings := r.warnings
	if warnings == nil {
		warnings = []string{}
	}
	var benchmark *string
	if r.benchmark != "" {
		benchmark = &r.benchmark
	}
	return json.Marshal(struct {
		ID          string                   `json:"id"`
		Symbol      string                   `json:"symbol"`
		Benchmark   *string                  `json:"benchmark"`
		Start       string                   `json:"start"`
		End         string                   `json:"end"`
		GeneratedAt time.Time                `json:"generated_at"`
		Prices      []domain.PriceBar        `json:"prices"`
		Returns     []domain.ReturnPoint     `json:"returns"`
		Metrics     domain.MetricsRecord     `json:"metrics"`
		MonteCarlo  *domain.MonteCarloResult `json:"monte_carlo"`
		Portfolio   *domain.PortfolioResult  `json:"portfolio"`
		Charts      *ChartData               `json:"charts"`
		Warnings    []string                 `json:"warnings"`
	}{
		ID:          r.id,
		Symbol:      r.symbol,
		Benchmark:   benchmark,
		Start:       r.start.Format("2006-01-02"),
		End:         r.end.Format("2006-01-02"),
		GeneratedAt: r.generatedAt,
		Prices:      r.prices.Bars,
		Returns:     r.returns.Points,
		Metrics:     r.metrics,
		MonteCarlo:  r.monteCarlo,
		Portfolio:   r.portfolio,
		Charts:      r.charts,
		Warnings:    warnings,
	})
}

// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// PriceBar is one period of OHLCV data
type PriceBar struct {
	Date   time.Time `json:"date" msgpack:"date"`
	Open   float64   `json:"open" msgpack:"open"`
	High   float64   `json:"high" msgpack:"high"`
	Low    float64   `json:"low" msgpack:"low"`
	Close  float64   `json:"close" msgpack:"close"`
	Volume int64     `json:"volume" msgpack:"volume"`
}

// PriceSeries is an ordered sequence of bars for one symbol.
// Dates are strictly increasing.
type PriceSeries struct {
	Symbol string     `json:"symbol" msgpack:"symbol"`
	Bars   []PriceBar `json:"bars" msgpack:"bars"`
}

// Len returns the number of bars
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Closes returns a copy of the close prices in date order
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns a copy of the bar dates in order
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Validate checks that dates are strictly increasing and closes are positive
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Close <= 0 || math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return fmt.Errorf("invalid close price %v at %s", b.Close, b.Date.Format("2006-01-02"))
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("dates not strictly increasing at index %d (%s after %s)",
				i, b.Date.Format("2006-01-02"), s.Bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// ReturnPoint is the simple return realized at Date relative to the previous bar
type ReturnPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ReturnSeries is an ordered sequence of period returns.
// It is one element shorter than the price series it was derived from.
type ReturnSeries struct {
	Symbol string        `json:"symbol"`
	Points []ReturnPoint `json:"points"`
}

// Len returns the number of returns
func (r ReturnSeries) Len() int {
	return len(r.Points)
}

// Values returns a copy of the return values in date order
func (r ReturnSeries) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Value
	}
	return out
}

// Dates returns a copy of the return dates in order
func (r ReturnSeries) Dates() []time.Time {
	out := make([]time.Time, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Date
	}
	return out
}

// MetricsRecord holds the scalar risk/performance metrics for one asset.
// NaN marks a metric that could not be computed.
type MetricsRecord struct {
	ROI         float64 // percent
	SharpeRatio float64
	VaR         float64 // raw 5th percentile of returns
	StdDev      float64
	MaxDrawdown float64 // percent, <= 0
	Alpha       float64
	Beta        float64
	MCVaR       float64 // percent
	MCES        float64 // percent
	MCCVaR      float64 // percent
}

// Metric names used by AsMap and the JSON encoding
const (
	MetricROI         = "roi"
	MetricSharpeRatio = "sharpe_ratio"
	MetricVaR         = "var"
	MetricStdDev      = "std_dev"
	MetricMaxDrawdown = "max_drawdown"
	MetricAlpha       = "alpha"
	MetricBeta        = "beta"
	MetricMCVaR       = "mc_var"
	MetricMCES        = "mc_es"
	MetricMCCVaR      = "mc_cvar"
)

// MetricNames lists metric names in presentation order
var MetricNames = []string{
	MetricROI, MetricSharpeRatio, MetricVaR, MetricStdDev, MetricMaxDrawdown,
	MetricAlpha, MetricBeta, MetricMCVaR, MetricMCES, MetricMCCVaR,
}

// NewMetricsRecord returns a record with every metric set to NaN
func NewMetricsRecord() MetricsRecord {
	nan := math.NaN()
	return MetricsRecord{
		ROI: nan, SharpeRatio: nan, VaR: nan, StdDev: nan, MaxDrawdown: nan,
		Alpha: nan, Beta: nan, MCVaR: nan, MCES: nan, MCCVaR: nan,
	}
}

// AsMap returns the flat metric-name to value mapping
func (m MetricsRecord) AsMap() map[string]float64 {
	return map[string]float64{
		MetricROI:         m.ROI,
		MetricSharpeRatio: m.SharpeRatio,
		MetricVaR:         m.VaR,
		MetricStdDev:      m.StdDev,
		MetricMaxDrawdown: m.MaxDrawdown,
		MetricAlpha:       m.Alpha,
		MetricBeta:        m.Beta,
		MetricMCVaR:       m.MCVaR,
		MetricMCES:        m.MCES,
		MetricMCCVaR:      m.MCCVaR,
	}
}

// WithMonteCarlo returns a copy of the record carrying the simulated risk figures
func (m MetricsRecord) WithMonteCarlo(mc MonteCarloResult) MetricsRecord {
	m.MCVaR = mc.VaR
	m.MCES = mc.ES
	m.MCCVaR = mc.CVaR
	return m
}

// MarshalJSON encodes the record as a flat object; NaN and infinities become null
func (m MetricsRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]*float64, len(MetricNames))
	for name, v := range m.AsMap() {
		out[name] = finiteOrNil(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat object; null or missing metrics become NaN
func (m *MetricsRecord) UnmarshalJSON(data []byte) error {
	var in map[string]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	get := func(name string) float64 {
		if v, ok := in[name]; ok && v != nil {
			return *v
		}
		return math.NaN()
	}
	*m = MetricsRecord{
		ROI:         get(MetricROI),
		SharpeRatio: get(MetricSharpeRatio),
		VaR:         get(MetricVaR),
		StdDev:      get(MetricStdDev),
		MaxDrawdown: get(MetricMaxDrawdown),
		Alpha:       get(MetricAlpha),
		Beta:        get(MetricBeta),
		MCVaR:       get(MetricMCVaR),
		MCES:        get(MetricMCES),
		MCCVaR:      get(MetricMCCVaR),
	}
	return nil
}

// MonteCarloResult holds simulated risk figures, all in percent
type MonteCarloResult struct {
	VaR         float64
	ES          float64
	CVaR        float64 // same formula as ES
	Simulations int
	Confidence  float64
	TailSize    int // number of terminal values below the VaR cutoff
}

// MarshalJSON encodes NaN figures as null
func (r MonteCarloResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		VaR         *float64 `json:"mc_var"`
		ES          *float64 `json:"mc_es"`
		CVaR        *float64 `json:"mc_cvar"`
		Simulations int      `json:"simulations"`
		Confidence  float64  `json:"confidence"`
		TailSize    int      `json:"tail_size"`
	}{
		VaR:         finiteOrNil(r.VaR),
		ES:          finiteOrNil(r.ES),
		CVaR:        finiteOrNil(r.CVaR),
		Simulations: r.Simulations,
		Confidence:  r.Confidence,
		TailSize:    r.TailSize,
	})
}

// PortfolioResult is an optimized allocation
type PortfolioResult struct {
	Weights        map[string]float64 // non-negative, sums to 1
	Assets         []string           // column order of the returns matrix
	ExpectedReturn float64            // annualized
	Volatility     float64            // annualized
	SharpeRatio    float64
	Status         string // solver status, "Trivial" when no solve was needed
}

// StatusTrivial marks a result that did not require the solver
const StatusTrivial = "Trivial"

// WeightVector returns the weights in asset column order
func (p PortfolioResult) WeightVector() []float64 {
	out := make([]float64, len(p.Assets))
	for i, a := range p.Assets {
		out[i] = p.Weights[a]
	}
	return out
}

// MarshalJSON encodes NaN figures as null
func (p PortfolioResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Weights        map[string]float64 `json:"weights"`
		Assets         []string           `json:"assets"`
		ExpectedReturn *float64           `json:"expected_return"`
		Volatility     *float64           `json:"volatility"`
		SharpeRatio    *float64           `json:"sharpe_ratio"`
		Status         string             `json:"status"`
	}{
		Weights:        p.Weights,
		Assets:         p.Assets,
		ExpectedReturn: finiteOrNil(p.ExpectedReturn),
		Volatility:     finiteOrNil(p.Volatility),
		SharpeRatio:    finiteOrNil(p.SharpeRatio),
		Status:         p.Status,
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

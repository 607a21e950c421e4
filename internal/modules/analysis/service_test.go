package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aristath/finmetrics/internal/clients/synthetic"
	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/internal/modules/metrics"
	"github.com/aristath/finmetrics/internal/modules/montecarlo"
	"github.com/aristath/finmetrics/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu     sync.Mutex
	series map[string]domain.PriceSeries
	errs   map[string]error
	calls  []string
}

func (p *fakeProvider) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, symbol)
	if err, ok := p.errs[symbol]; ok {
		return domain.PriceSeries{}, err
	}
	s, ok := p.series[symbol]
	if !ok {
		return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Reason: "unknown symbol"}
	}
	return s, nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func series(symbol string, closes ...float64) domain.PriceSeries {
	s := domain.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Bars = append(s.Bars, domain.PriceBar{
			Date: day(i + 1), Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: int64(1000 * (i + 1)),
		})
	}
	return s
}

func newTestService(provider domain.MarketDataProvider) *Service {
	log := zerolog.Nop()
	return NewService(
		provider,
		metrics.NewEngine(metrics.DefaultOptions(), log),
		montecarlo.NewSimulator(montecarlo.Config{Simulations: 500, Workers: 2}, log),
		optimization.NewMVOptimizer(optimization.DefaultOptions(), log),
		Config{BenchmarkSymbol: "^GSPC", FetchTimeout: time.Second},
		log,
	)
}

func seed(v uint64) *uint64 { return &v }

func baseRequest() Request {
	return Request{Symbol: "AAPL", Start: day(1), End: day(31), Seed: seed(42)}
}

func TestService_Analyze(t *testing.T) {
	provider := &fakeProvider{series: map[string]domain.PriceSeries{
		"AAPL":  series("AAPL", 100, 110, 99, 108.9),
		"^GSPC": series("^GSPC", 100, 105, 100, 104),
	}}
	svc := newTestService(provider)

	report, err := svc.Analyze(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID())
	assert.Equal(t, "AAPL", report.Symbol())
	assert.Equal(t, "^GSPC", report.Benchmark())
	assert.Equal(t, []string{"AAPL", "^GSPC"}, provider.calls)

	m := report.Metrics()
	assert.InDelta(t, 8.9, m.ROI, 1e-9)
	assert.InDelta(t, 0.11547, m.StdDev, 1e-4)
	assert.InDelta(t, -10.0, m.MaxDrawdown, 1e-9)
	assert.False(t, math.IsNaN(m.Alpha))
	assert.False(t, math.IsNaN(m.Beta))
	assert.False(t, math.IsNaN(m.MCVaR))
	assert.Equal(t, m.MCES, m.MCCVaR)

	require.NotNil(t, report.MonteCarlo())
	assert.Equal(t, 500, report.MonteCarlo().Simulations)

	portfolio := report.Portfolio()
	require.NotNil(t, portfolio)
	assert.Equal(t, 1.0, portfolio.Weights["AAPL"])
	assert.Equal(t, domain.StatusTrivial, portfolio.Status)

	assert.Equal(t, 4, report.Prices().Len())
	assert.Equal(t, 3, report.Returns().Len())
	require.NotNil(t, report.Charts())
	assert.Len(t, report.Charts().Line, 4)
	assert.Empty(t, report.Warnings())
}

func TestService_Analyze_Deterministic(t *testing.T) {
	provider := &fakeProvider{series: map[string]domain.PriceSeries{
		"AAPL": series("AAPL", 100, 110, 99, 108.9, 112, 107),
	}}
	svc := newTestService(provider)
	req := baseRequest()
	req.NoBenchmark = true

	a, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, *a.MonteCarlo(), *b.MonteCarlo())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestService_Analyze_BenchmarkDegrades(t *testing.T) {
	provider := &fakeProvider{
		series: map[string]domain.PriceSeries{"AAPL": series("AAPL", 100, 110, 99, 108.9)},
		errs:   map[string]error{"^GSPC": errors.New("connection refused")},
	}
	svc := newTestService(provider)

	report, err := svc.Analyze(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.True(t, math.IsNaN(report.Metrics().Alpha))
	assert.True(t, math.IsNaN(report.Metrics().Beta))
	require.NotEmpty(t, report.Warnings())
	assert.Contains(t, report.Warnings()[0], "^GSPC unavailable")
}

func TestService_Analyze_NoBenchmark(t *testing.T) {
	provider := &fakeProvider{series: map[string]domain.PriceSeries{"AAPL": series("AAPL", 100, 110, 99, 108.9)}}
	svc := newTestService(provider)

	req := baseRequest()
	req.NoBenchmark = true
	report, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, provider.calls)
	assert.Empty(t, report.Benchmark())
	assert.True(t, math.IsNaN(report.Metrics().Beta))
}

func TestService_Analyze_TwoPricesSkipsSimulationAndOptimizer(t *testing.T) {
	provider := &fakeProvider{series: map[string]domain.PriceSeries{"AAPL": series("AAPL", 100, 110)}}
	svc := newTestService(provider)

	req := baseRequest()
	req.NoBenchmark = true
	report, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, report.Metrics().ROI, 1e-9)
	assert.Nil(t, report.MonteCarlo())
	assert.Nil(t, report.Portfolio())
	assert.True(t, math.IsNaN(report.Metrics().MCVaR))
	assert.GreaterOrEqual(t, len(report.Warnings()), 3)
}

func TestService_Analyze_RiskFreeOverride(t *testing.T) {
	provider := &fakeProvider{series: map[string]domain.PriceSeries{"AAPL": series("AAPL", 100, 110, 99, 108.9)}}
	svc := newTestService(provider)

	req := baseRequest()
	req.NoBenchmark = true
	rate := 0.05
	req.RiskFreeRate = &rate

	report, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	p := report.Portfolio()
	require.NotNil(t, p)
	assert.InDelta(t, (p.ExpectedReturn-0.05)/p.Volatility, p.SharpeRatio, 1e-9)

	// The service default is untouched
	assert.Equal(t, 0.02, svc.engine.Options().RiskFreeRate)
}

func TestService_Analyze_Errors(t *testing.T) {
	provider := &fakeProvider{series: map[string]domain.PriceSeries{"ONE": series("ONE", 100)}}
	svc := newTestService(provider)

	t.Run("unknown symbol", func(t *testing.T) {
		req := baseRequest()
		req.Symbol = "NOPE"
		_, err := svc.Analyze(context.Background(), req)

		var dataErr *domain.DataUnavailableError
		assert.True(t, errors.As(err, &dataErr))
	})

	t.Run("single price", func(t *testing.T) {
		req := baseRequest()
		req.Symbol = "ONE"
		_, err := svc.Analyze(context.Background(), req)

		var insufficient *domain.InsufficientDataError
		assert.True(t, errors.As(err, &insufficient))
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := newTestService(nil).Analyze(context.Background(), baseRequest())

		var dataErr *domain.DataUnavailableError
		assert.True(t, errors.As(err, &dataErr))
	})
}

func TestRequest_Validate(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name   string
		mutate func(r *Request)
		field  string
	}{
		{"missing symbol", func(r *Request) { r.Symbol = " " }, "symbol"},
		{"missing start", func(r *Request) { r.Start = time.Time{} }, "start"},
		{"end before start", func(r *Request) { r.End = r.Start.AddDate(0, 0, -1) }, "end"},
		{"NaN risk-free rate", func(r *Request) { r.RiskFreeRate = &nan }, "risk_free_rate"},
		{"negative simulations", func(r *Request) { r.Simulations = -1 }, "simulations"},
		{"confidence of one", func(r *Request) { r.Confidence = 1 }, "confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)

			var vErr domain.ValidationError
			require.True(t, errors.As(req.Validate(), &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.NoError(t, baseRequest().Validate())
}

func TestService_Analyze_SyntheticData(t *testing.T) {
	svc := newTestService(synthetic.NewGenerator(synthetic.DefaultSeed, zerolog.Nop()))

	req := Request{
		Symbol: "MSFT",
		Start:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		Seed:   seed(7),
	}
	report, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 260, report.Prices().Len())
	assert.False(t, math.IsNaN(report.Metrics().Beta))
	assert.LessOrEqual(t, report.Metrics().MaxDrawdown, 0.0)

	charts := report.Charts()
	require.NotNil(t, charts)
	require.NotNil(t, charts.Correlation)
	assert.InDelta(t, 1.0, charts.Correlation.At("Close", "Close"), 1e-9)
	assert.Len(t, charts.MovingAverage, 260-IndicatorWindow+1)
	assert.Len(t, charts.RollingVolatility, 259-IndicatorWindow+1)
	assert.Len(t, charts.Histogram.Counts, HistogramBins)
}

func TestReport_MarshalJSON(t *testing.T) {
	provider := &fakeProvider{series: map[string]domain.PriceSeries{"AAPL": series("AAPL", 100, 110, 99, 108.9)}}
	svc := newTestService(provider)

	req := baseRequest()
	req.NoBenchmark = true
	report, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, report.ID(), decoded["id"])
	assert.Equal(t, "2024-01-01", decoded["start"])
	assert.Nil(t, decoded["benchmark"])

	metricsMap, ok := decoded["metrics"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 8.9, metricsMap["roi"], 1e-9)
	assert.Nil(t, metricsMap["alpha"])

	assert.NotNil(t, decoded["portfolio"])
	assert.IsType(t, []interface{}{}, decoded["warnings"])
}

package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestROI(t *testing.T) {
	assert.InDelta(t, 8.9, ROI([]float64{100, 110, 99, 108.9}), 1e-9)
	assert.InDelta(t, -50.0, ROI([]float64{200, 100}), 1e-9)
	assert.True(t, math.IsNaN(ROI([]float64{100})))
}

func TestStdDev_IsSample(t *testing.T) {
	// mean 1/30, deviations 2/30, -4/30, 2/30; sum of squares 24/900; /2 = 12/900
	got := StdDev([]float64{0.1, -0.1, 0.1})
	assert.InDelta(t, math.Sqrt(12.0/900.0), got, 1e-12)
	assert.InDelta(t, 0.11547, got, 1e-4)
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.1, -0.1, 0.1}
	expected := math.Sqrt(252) * (0.1 / 3) / StdDev(returns)
	assert.InDelta(t, expected, SharpeRatio(returns, 252), 1e-9)

	t.Run("zero variance positive mean is +Inf", func(t *testing.T) {
		assert.True(t, math.IsInf(SharpeRatio([]float64{0.25, 0.25, 0.25}, 252), 1))
	})
	t.Run("zero variance zero mean is NaN", func(t *testing.T) {
		assert.True(t, math.IsNaN(SharpeRatio([]float64{0, 0, 0}, 252)))
	})
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		p        float64
		expected float64
	}{
		{"5th of three", []float64{0.1, -0.1, 0.1}, 5, -0.08},
		{"median odd", []float64{3, 1, 2}, 50, 2},
		{"median even", []float64{1, 2, 3, 4}, 50, 2.5},
		{"min", []float64{5, 1, 9}, 0, 1},
		{"max", []float64{5, 1, 9}, 100, 9},
		{"single", []float64{7}, 5, 7},
		{"1..10 at 5", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5, 1.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Percentile(tt.data, tt.p), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(Percentile(nil, 5)))
	assert.True(t, math.IsNaN(Percentile([]float64{1}, 101)))
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		returns  []float64
		expected float64
	}{
		{"round trip", []float64{0.1, -0.1, 0.1}, -0.10},
		{"monotone up", []float64{0.01, 0.02, 0.0, 0.03}, 0},
		{"two legs down", []float64{0.5, -0.5, 0.2, -0.5}, -0.70},
		{"first period loss is not a drawdown", []float64{-0.1, 0.05}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.returns)
			assert.InDelta(t, tt.expected, got, 1e-12)
			assert.LessOrEqual(t, got, 0.0)
		})
	}
}

func TestCumulativeReturns(t *testing.T) {
	got := CumulativeReturns([]float64{0.1, -0.1, 0.1})
	assert.InDeltaSlice(t, []float64{1.1, 0.99, 1.089}, got, 1e-12)
}

func TestAnnualizedMomentsAndCovariance(t *testing.T) {
	returns := mat.NewDense(4, 2, []float64{
		0.01, 0.02,
		-0.01, 0.00,
		0.02, 0.01,
		0.00, -0.01,
	})

	means := AnnualizedMeans(returns, 252)
	assert.InDelta(t, 0.005*252, means[0], 1e-12)
	assert.InDelta(t, 0.005*252, means[1], 1e-12)

	cov := AnnualizedCovariance(returns, 252)
	a := []float64{0.01, -0.01, 0.02, 0.00}
	b := []float64{0.02, 0.00, 0.01, -0.01}
	assert.InDelta(t, Variance(a)*252, cov.At(0, 0), 1e-12)
	assert.InDelta(t, Covariance(a, b)*252, cov.At(0, 1), 1e-12)
}

func TestCorrelationMatrix(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
	})
	corr := CorrelationMatrix(x)
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, corr.At(1, 1), 1e-12)
}

func TestHistogram(t *testing.T) {
	edges, counts := Histogram([]float64{0, 1, 2, 3, 4}, 4)
	require.Len(t, edges, 5)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3, 4}, edges, 1e-12)
	assert.Equal(t, []float64{1, 1, 1, 2}, counts)

	t.Run("constant data", func(t *testing.T) {
		edges, counts := Histogram([]float64{2, 2, 2}, 2)
		assert.InDeltaSlice(t, []float64{1.5, 2, 2.5}, edges, 1e-12)
		assert.Equal(t, []float64{0, 3}, counts)
	})

	t.Run("empty", func(t *testing.T) {
		edges, counts := Histogram(nil, 10)
		assert.Nil(t, edges)
		assert.Nil(t, counts)
	})
}

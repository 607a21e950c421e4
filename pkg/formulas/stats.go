// Package formulas holds the statistical building blocks shared by the
// metrics engine, the simulator and the optimizer.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (N-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance (N-1 denominator)
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// ROI returns the total return of a price path in percent
func ROI(prices []float64) float64 {
	if len(prices) < 2 {
		return math.NaN()
	}
	return (prices[len(prices)-1]/prices[0] - 1) * 100
}

// SharpeRatio returns sqrt(periodsPerYear) * mean / stddev.
// A zero standard deviation yields +Inf, -Inf or NaN depending on the mean.
func SharpeRatio(returns []float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	std := StdDev(returns)
	return math.Sqrt(float64(periodsPerYear)) * Mean(returns) / std
}

// Percentile returns the p-th percentile (0-100) of data using linear
// interpolation between order statistics: with h = (n-1)*p/100 the result is
// x[floor(h)] + (h-floor(h)) * (x[floor(h)+1] - x[floor(h)]).
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 || p < 0 || p > 100 || math.IsNaN(p) {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// CumulativeReturns returns the compounded wealth path prod(1+r) after each period
func CumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	wealth := 1.0
	for i, r := range returns {
		wealth *= 1 + r
		out[i] = wealth
	}
	return out
}

// MaxDrawdown returns the largest peak-to-trough decline of the compounded
// return path as a fraction (<= 0). The running peak starts at the first
// compounded value, not at the initial capital.
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}

	cum := CumulativeReturns(returns)
	peak := cum[0]
	maxDD := 0.0
	for _, v := range cum {
		if v > peak {
			peak = v
		}
		if dd := v/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// AnnualizedCovariance returns the sample covariance matrix of the columns of
// returns scaled by periodsPerYear
func AnnualizedCovariance(returns mat.Matrix, periodsPerYear int) *mat.SymDense {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returns, nil)
	cov.ScaleSym(float64(periodsPerYear), &cov)
	return &cov
}

// AnnualizedMeans returns the column means of returns scaled by periodsPerYear
func AnnualizedMeans(returns mat.Matrix, periodsPerYear int) []float64 {
	rows, cols := returns.Dims()
	means := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, returns)
		means[j] = stat.Mean(col, nil) * float64(periodsPerYear)
	}
	return means
}

// CorrelationMatrix returns the Pearson correlation matrix of the columns of x.
// Constant columns produce NaN entries.
func CorrelationMatrix(x mat.Matrix) *mat.SymDense {
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, x, nil)
	return &corr
}

// Histogram bins data into the given number of equal-width bins spanning
// [min, max]. The maximum value falls into the last bin. When every value is
// equal the range is widened to [v-0.5, v+0.5].
func Histogram(data []float64, bins int) (edges []float64, counts []float64) {
	if len(data) == 0 || bins < 1 {
		return nil, nil
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	edges = make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts = stat.Histogram(nil, dividers, sorted, nil)
	return edges, counts
}

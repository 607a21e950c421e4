// Package optimization finds long-only portfolio weights that maximize the
// Sharpe ratio of a set of assets.
package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Options holds optimizer parameters
type Options struct {
	// RiskFreeRate is annual and is subtracted from the annualized portfolio return
	RiskFreeRate   float64
	PeriodsPerYear int
	MaxIterations  int
}

// DefaultOptions returns the standard daily-data configuration
func DefaultOptions() Options {
	return Options{
		RiskFreeRate:   0.02,
		PeriodsPerYear: 252,
		MaxIterations:  2000,
	}
}

const (
	// penaltyWeight scales the quadratic penalty keeping Σx² near 1
	penaltyWeight = 1000.0
	// minVariance floors portfolio variance inside the objective
	minVariance = 1e-10
	// minWeightSum guards normalization of an all-zero iterate
	minWeightSum = 1e-10
)

// acceptedStatuses are solver outcomes treated as converged
var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.FunctionConvergence: true,
	optimize.GradientThreshold:   true,
	optimize.StepConvergence:     true,
	optimize.MethodConverge:      true,
}

// MVOptimizer performs mean-variance portfolio optimization.
type MVOptimizer struct {
	opts Options
	log  zerolog.Logger
}

// NewMVOptimizer creates a new mean-variance optimizer.
func NewMVOptimizer(opts Options, log zerolog.Logger) *MVOptimizer {
	defaults := DefaultOptions()
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = defaults.PeriodsPerYear
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	return &MVOptimizer{
		opts: opts,
		log:  log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// Options returns the optimizer configuration
func (mvo *MVOptimizer) Options() Options {
	return mvo.opts
}

// WithRiskFreeRate returns an optimizer identical to mvo except for the rate
func (mvo *MVOptimizer) WithRiskFreeRate(rate float64) *MVOptimizer {
	opts := mvo.opts
	opts.RiskFreeRate = rate
	return &MVOptimizer{opts: opts, log: mvo.log}
}

// Optimize solves the max-Sharpe problem for the assets in the columns of
// returns (one row per period).
//
// Mathematical formulation:
//   - maximize (P·μ'w - r_f) / sqrt(w'(P·Σ)w), μ and Σ the sample mean and
//     covariance of period returns, P = PeriodsPerYear
//   - Σw = 1
//   - 0 ≤ w_i ≤ 1
//
// A single asset gets weight 1.0 without running the solver. When the solver
// does not converge an *domain.OptimizationFailure carrying the last iterate
// is returned.
func (mvo *MVOptimizer) Optimize(assets []string, returns *mat.Dense) (*domain.PortfolioResult, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	if returns == nil {
		return nil, fmt.Errorf("no returns provided")
	}

	rows, cols := returns.Dims()
	if cols != n {
		return nil, fmt.Errorf("returns matrix has %d columns, expected %d assets", cols, n)
	}
	seen := make(map[string]bool, n)
	for _, a := range assets {
		if seen[a] {
			return nil, fmt.Errorf("duplicate asset %q", a)
		}
		seen[a] = true
	}
	if rows < 2 {
		return nil, &domain.InsufficientDataError{What: "return periods", Required: 2, Got: rows}
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := returns.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("returns matrix has non-finite value at row %d, asset %s", i, assets[j])
			}
		}
	}

	mu := formulas.AnnualizedMeans(returns, mvo.opts.PeriodsPerYear)
	sigma := formulas.AnnualizedCovariance(returns, mvo.opts.PeriodsPerYear)

	if n == 1 {
		return mvo.buildResult(assets, []float64{1.0}, mu, sigma, domain.StatusTrivial), nil
	}

	return mvo.optimizeMaxSharpe(assets, mu, sigma)
}

// optimizeMaxSharpe maximizes (μ'w - r_f) / sqrt(w'Σw) over the simplex.
//
// Weights are parametrized as w_i = x_i² / Σx², which keeps every iterate
// feasible and the objective smooth, with a quadratic penalty on Σx² - 1 to
// pin the scale of x. The solver result is then compared with every
// single-asset portfolio and the best of them is returned.
func (mvo *MVOptimizer) optimizeMaxSharpe(assets []string, mu []float64, sigma *mat.SymDense) (*domain.PortfolioResult, error) {
	n := len(mu)
	rf := mvo.opts.RiskFreeRate

	sharpeAndGrad := func(w []float64, grad []float64) float64 {
		var returnVal, variance float64
		sw := make([]float64, n)
		for i := 0; i < n; i++ {
			returnVal += mu[i] * w[i]
			for j := 0; j < n; j++ {
				sw[i] += sigma.At(i, j) * w[j]
			}
			variance += w[i] * sw[i]
		}
		stdDev := math.Sqrt(math.Max(variance, minVariance))
		excess := returnVal - rf

		if grad != nil {
			for i := 0; i < n; i++ {
				grad[i] = mu[i]/stdDev - excess*sw[i]/(stdDev*stdDev*stdDev)
			}
		}
		return excess / stdDev
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sq := floats.Dot(x, x)
			penalty := penaltyWeight * (sq - 1.0) * (sq - 1.0)
			if sq < minWeightSum {
				return penalty + 1e6
			}
			return -sharpeAndGrad(squaredWeights(x), nil) + penalty
		},
		Grad: func(grad, x []float64) {
			sq := floats.Dot(x, x)
			for k := range grad {
				grad[k] = 4 * penaltyWeight * (sq - 1.0) * x[k]
			}
			if sq < minWeightSum {
				return
			}

			w := squaredWeights(x)
			g := make([]float64, n)
			sharpeAndGrad(w, g)

			// Chain rule through w_i = x_i²/Σx²: dw_i/dx_k = 2x_k(δ_ik - w_i)/Σx²
			wg := floats.Dot(w, g)
			for k := 0; k < n; k++ {
				grad[k] -= 2 * x[k] * (g[k] - wg) / sq
			}
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / math.Sqrt(float64(n))
	}

	settings := &optimize.Settings{MajorIterations: mvo.opts.MaxIterations}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil {
		mvo.log.Debug().Err(err).Msg("BFGS failed, falling back to Nelder-Mead")
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	}

	if err != nil || result == nil || !acceptedStatuses[result.Status] {
		status := optimize.Failure
		last := initial
		if result != nil {
			status = result.Status
			last = result.X
		}
		failure := &domain.OptimizationFailure{
			Status:      status.String(),
			LastWeights: weightMap(assets, squaredWeights(last)),
			Err:         err,
		}
		mvo.log.Warn().Str("status", failure.Status).Msg("Portfolio optimization did not converge")
		return nil, failure
	}

	weights := squaredWeights(result.X)
	best := sharpeAndGrad(weights, nil)
	vertex := -1
	for i := 0; i < n; i++ {
		e := make([]float64, n)
		e[i] = 1
		if v := sharpeAndGrad(e, nil); v > best {
			best, vertex = v, i
		}
	}
	if vertex >= 0 {
		mvo.log.Debug().Str("asset", assets[vertex]).Msg("Single-asset portfolio beats solver result")
		weights = make([]float64, n)
		weights[vertex] = 1
	}

	portfolio := mvo.buildResult(assets, weights, mu, sigma, result.Status.String())

	mvo.log.Debug().
		Str("status", portfolio.Status).
		Int("assets", n).
		Int("iterations", result.Stats.MajorIterations).
		Float64("sharpe", portfolio.SharpeRatio).
		Msg("Portfolio optimization completed")

	return portfolio, nil
}

// buildResult computes the annualized figures for weights
func (mvo *MVOptimizer) buildResult(assets []string, weights, mu []float64, sigma *mat.SymDense, status string) *domain.PortfolioResult {
	w := mat.NewVecDense(len(weights), weights)

	expectedReturn := mat.Dot(mat.NewVecDense(len(mu), mu), w)
	volatility := math.Sqrt(math.Max(mat.Inner(w, sigma, w), 0))

	sharpe := math.NaN()
	if volatility > 0 {
		sharpe = (expectedReturn - mvo.opts.RiskFreeRate) / volatility
	}

	order := make([]string, len(assets))
	copy(order, assets)

	return &domain.PortfolioResult{
		Weights:        weightMap(assets, weights),
		Assets:         order,
		ExpectedReturn: expectedReturn,
		Volatility:     volatility,
		SharpeRatio:    sharpe,
		Status:         status,
	}
}

// squaredWeights maps x onto the simplex as x_i² / Σx²; a zero vector
// becomes uniform
func squaredWeights(x []float64) []float64 {
	out := make([]float64, len(x))
	sq := floats.Dot(x, x)
	if sq < minWeightSum {
		for i := range out {
			out[i] = 1.0 / float64(len(x))
		}
		return out
	}
	for i := range x {
		out[i] = x[i] * x[i] / sq
	}
	return out
}

func weightMap(assets []string, weights []float64) map[string]float64 {
	m := make(map[string]float64, len(assets))
	for i, a := range assets {
		m[a] = weights[i]
	}
	return m
}

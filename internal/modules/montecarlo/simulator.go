// Package montecarlo estimates Value-at-Risk and Expected Shortfall by
// simulating compounded return paths drawn from a normal model fitted to
// historical returns.
package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"
)

// Defaults used when a Config or Params field is left zero
const (
	DefaultSimulations    = 10000
	DefaultMaxSimulations = 1000000
	DefaultConfidence     = 0.95
	DefaultChunkSize      = 256
)

// SourceFunc returns the random source for one stream of a seeded run.
// Streams are numbered by chunk so output does not depend on scheduling.
type SourceFunc func(seed, stream uint64) rand.Source

// PCGSource is the default SourceFunc
func PCGSource(seed, stream uint64) rand.Source {
	return rand.NewPCG(seed, stream)
}

// Config holds simulator defaults
type Config struct {
	Simulations    int
	MaxSimulations int // cap on Params.Simulations
	Confidence     float64
	Workers        int // 0 = runtime.NumCPU()
	ChunkSize      int // paths per random stream
	Seed           *uint64
	Source         SourceFunc
}

// Params overrides the simulator defaults for a single run
type Params struct {
	Simulations int     // 0 = config default
	Confidence  float64 // 0 = config default
	Seed        *uint64 // nil = config default, then a random seed
}

// Simulator runs Monte Carlo VaR/ES estimates
type Simulator struct {
	cfg  Config
	pool *WorkerPool
	log  zerolog.Logger
}

// NewSimulator creates a simulator, filling unset config fields with defaults
func NewSimulator(cfg Config, log zerolog.Logger) *Simulator {
	if cfg.Simulations <= 0 {
		cfg.Simulations = DefaultSimulations
	}
	if cfg.MaxSimulations <= 0 {
		cfg.MaxSimulations = DefaultMaxSimulations
	}
	if cfg.MaxSimulations < cfg.Simulations {
		cfg.MaxSimulations = cfg.Simulations
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = DefaultConfidence
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Source == nil {
		cfg.Source = PCGSource
	}
	return &Simulator{
		cfg:  cfg,
		pool: NewWorkerPool(cfg.Workers),
		log:  log.With().Str("component", "monte_carlo").Logger(),
	}
}

// Config returns the simulator configuration with defaults applied
func (s *Simulator) Config() Config {
	return s.cfg
}

// Run simulates params.Simulations paths, each as long as rets, with i.i.d.
// N(mean, sample stddev) period returns. Terminal values prod(1+r) are
// sorted and, with k = floor(n*(1-confidence)):
//
//	VaR = (1 - terminal[k]) * 100
//	ES  = (1 - mean(terminal[:k])) * 100
//
// CVaR is reported with the same formula as ES. ES and CVaR are NaN when
// k is zero.
func (s *Simulator) Run(ctx context.Context, rets []float64, params Params) (domain.MonteCarloResult, error) {
	n := params.Simulations
	if n == 0 {
		n = s.cfg.Simulations
	}
	confidence := params.Confidence
	if confidence == 0 {
		confidence = s.cfg.Confidence
	}

	if n < 1 {
		return domain.MonteCarloResult{}, domain.ValidationError{Field: "simulations", Message: fmt.Sprintf("must be at least 1, got %d", n)}
	}
	if n > s.cfg.MaxSimulations {
		return domain.MonteCarloResult{}, domain.ValidationError{Field: "simulations", Message: fmt.Sprintf("must be at most %d, got %d", s.cfg.MaxSimulations, n)}
	}
	if !(confidence > 0 && confidence < 1) {
		return domain.MonteCarloResult{}, domain.ValidationError{Field: "confidence", Message: fmt.Sprintf("must be in (0, 1), got %v", confidence)}
	}
	if len(rets) < 2 {
		return domain.MonteCarloResult{}, &domain.InsufficientDataError{What: "returns", Required: 2, Got: len(rets)}
	}

	seed := s.resolveSeed(params.Seed)
	mu := formulas.Mean(rets)
	sigma := formulas.StdDev(rets)
	horizon := len(rets)

	terminal := make([]float64, n)
	simulate := func(ctx context.Context, c chunk) error {
		normal := distuv.Normal{Mu: mu, Sigma: sigma, Src: s.cfg.Source(seed, uint64(c.index))}
		for i := c.start; i < c.start+c.count; i++ {
			if i%64 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			wealth := 1.0
			for t := 0; t < horizon; t++ {
				wealth *= 1 + normal.Rand()
			}
			terminal[i] = wealth
		}
		return nil
	}

	if err := s.pool.RunChunks(ctx, splitChunks(n, s.cfg.ChunkSize), simulate); err != nil {
		return domain.MonteCarloResult{}, fmt.Errorf("monte carlo simulation aborted: %w", err)
	}

	sort.Float64s(terminal)
	k := int(math.Floor(float64(n) * (1 - confidence)))

	result := domain.MonteCarloResult{
		VaR:         (1 - terminal[k]) * 100,
		ES:          math.NaN(),
		CVaR:        math.NaN(),
		Simulations: n,
		Confidence:  confidence,
		TailSize:    k,
	}
	if k > 0 {
		es := (1 - formulas.Mean(terminal[:k])) * 100
		result.ES = es
		result.CVaR = es
	}

	s.log.Debug().
		Uint64("seed", seed).
		Int("simulations", n).
		Int("horizon", horizon).
		Float64("confidence", confidence).
		Float64("mc_var", result.VaR).
		Msg("Monte Carlo simulation completed")

	return result, nil
}

func (s *Simulator) resolveSeed(override *uint64) uint64 {
	if override != nil {
		return *override
	}
	if s.cfg.Seed != nil {
		return *s.cfg.Seed
	}
	return rand.Uint64()
}

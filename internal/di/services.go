package di

import (
	"fmt"

	"github.com/aristath/finmetrics/internal/clientdata"
	"github.com/aristath/finmetrics/internal/clients/synthetic"
	"github.com/aristath/finmetrics/internal/clients/yahoo"
	"github.com/aristath/finmetrics/internal/config"
	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/internal/modules/analysis"
	"github.com/aristath/finmetrics/internal/modules/metrics"
	"github.com/aristath/finmetrics/internal/modules/montecarlo"
	"github.com/aristath/finmetrics/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// InitializeServices creates the market data client and the analytics services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	provider, err := newMarketDataProvider(cfg, log)
	if err != nil {
		return err
	}

	if container.CacheDB != nil {
		container.PriceCache = clientdata.NewRepository(container.CacheDB.Conn())
		provider = clientdata.NewCachedProvider(provider, container.PriceCache, cfg.MarketDataSource, cfg.Cache.PriceTTL, log)
	}
	container.MarketData = provider

	a := cfg.Analytics
	container.MetricsEngine = metrics.NewEngine(metrics.Options{
		RiskFreeRate:   a.RiskFreeRate,
		PeriodsPerYear: a.PeriodsPerYear,
	}, log)

	var mcSeed *uint64
	if a.Seed != nil {
		v := uint64(*a.Seed)
		mcSeed = &v
	}
	container.Simulator = montecarlo.NewSimulator(montecarlo.Config{
		Simulations:    a.Simulations,
		MaxSimulations: a.MaxSimulations,
		Confidence:     a.Confidence,
		Workers:        a.Workers,
		Seed:           mcSeed,
	}, log)

	container.Optimizer = optimization.NewMVOptimizer(optimization.Options{
		RiskFreeRate:   a.RiskFreeRate,
		PeriodsPerYear: a.PeriodsPerYear,
		MaxIterations:  a.OptimizerMaxIterations,
	}, log)

	container.AnalysisService = analysis.NewService(
		container.MarketData,
		container.MetricsEngine,
		container.Simulator,
		container.Optimizer,
		analysis.Config{
			BenchmarkSymbol: cfg.BenchmarkSymbol,
			FetchTimeout:    cfg.FetchTimeout,
		},
		log,
	)

	log.Info().
		Str("market_data_source", cfg.MarketDataSource).
		Bool("price_cache", container.PriceCache != nil).
		Msg("Services initialized")

	return nil
}

func newMarketDataProvider(cfg *config.Config, log zerolog.Logger) (domain.MarketDataProvider, error) {
	switch cfg.MarketDataSource {
	case config.SourceYahoo:
		return yahoo.NewClient(log), nil
	case config.SourceSynthetic:
		return synthetic.NewGenerator(uint64(cfg.SyntheticSeed), log), nil
	default:
		return nil, fmt.Errorf("unknown market data source %q", cfg.MarketDataSource)
	}
}

// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Market data sources
const (
	SourceYahoo     = "yahoo"
	SourceSynthetic = "synthetic"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the price cache database (always absolute)
	LogLevel         string
	Port             int
	DevMode          bool
	MarketDataSource string // yahoo or synthetic
	BenchmarkSymbol  string
	FetchTimeout     time.Duration
	SyntheticSeed    int64 // must not be negative

	Analytics AnalyticsConfig
	Cache     CacheConfig
}

// AnalyticsConfig holds the numeric defaults applied to analysis requests
// that do not override them.
type AnalyticsConfig struct {
	RiskFreeRate           float64 // Annual rate, divided by PeriodsPerYear for per-period use
	PeriodsPerYear         int
	Simulations            int
	MaxSimulations         int    // upper bound for per-request overrides
	Seed                   *int64 // nil = random seed per run
	Confidence             float64
	Workers                int // 0 = runtime.NumCPU()
	OptimizerMaxIterations int
}

// CacheConfig holds price cache settings
type CacheConfig struct {
	Enabled         bool
	PriceTTL        time.Duration
	CleanupSchedule string // cron expression with seconds field
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINMETRICS_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MarketDataSource: getEnv("MARKET_DATA_SOURCE", SourceYahoo),
		BenchmarkSymbol:  getEnv("BENCHMARK_SYMBOL", "^GSPC"),
		FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
		SyntheticSeed:    getEnvAsInt64("SYNTHETIC_SEED", 42),
		Analytics: AnalyticsConfig{
			RiskFreeRate:           getEnvAsFloat("RISK_FREE_RATE", 0.02),
			PeriodsPerYear:         getEnvAsInt("PERIODS_PER_YEAR", 252),
			Simulations:            getEnvAsInt("MC_SIMULATIONS", 10000),
			MaxSimulations:         getEnvAsInt("MC_MAX_SIMULATIONS", 1000000),
			Seed:                   getEnvAsOptionalInt64("MC_SEED"),
			Confidence:             getEnvAsFloat("MC_CONFIDENCE", 0.95),
			Workers:                getEnvAsInt("MC_WORKERS", 0),
			OptimizerMaxIterations: getEnvAsInt("OPTIMIZER_MAX_ITERATIONS", 2000),
		},
		Cache: CacheConfig{
			Enabled:         getEnvAsBool("PRICE_CACHE_ENABLED", true),
			PriceTTL:        getEnvAsDuration("PRICE_CACHE_TTL", 6*time.Hour),
			CleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "0 0 3 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MarketDataSource != SourceYahoo && c.MarketDataSource != SourceSynthetic {
		return fmt.Errorf("invalid market data source %q (expected %q or %q)", c.MarketDataSource, SourceYahoo, SourceSynthetic)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.Analytics.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods per year must be positive, got %d", c.Analytics.PeriodsPerYear)
	}
	if c.Analytics.Simulations < 1 {
		return fmt.Errorf("simulations must be at least 1, got %d", c.Analytics.Simulations)
	}
	if c.Analytics.MaxSimulations < c.Analytics.Simulations {
		return fmt.Errorf("max simulations (%d) must not be below simulations (%d)", c.Analytics.MaxSimulations, c.Analytics.Simulations)
	}
	if c.Analytics.Seed != nil && *c.Analytics.Seed < 0 {
		return fmt.Errorf("monte carlo seed must not be negative, got %d", *c.Analytics.Seed)
	}
	if c.SyntheticSeed < 0 {
		return fmt.Errorf("synthetic seed must not be negative, got %d", c.SyntheticSeed)
	}
	if c.Analytics.Confidence <= 0 || c.Analytics.Confidence >= 1 {
		return fmt.Errorf("confidence must be in (0, 1), got %v", c.Analytics.Confidence)
	}
	if c.Analytics.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Analytics.Workers)
	}
	if c.Analytics.OptimizerMaxIterations < 1 {
		return fmt.Errorf("optimizer max iterations must be at least 1, got %d", c.Analytics.OptimizerMaxIterations)
	}
	if c.Cache.Enabled && c.Cache.PriceTTL <= 0 {
		return fmt.Errorf("price cache TTL must be positive, got %s", c.Cache.PriceTTL)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if v := getEnvAsOptionalInt64(key); v != nil {
		return *v
	}
	return defaultValue
}

// getEnvAsOptionalInt64 returns nil when key is unset or not an integer
func getEnvAsOptionalInt64(key string) *int64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &intVal
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("10s") or plain seconds ("10")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

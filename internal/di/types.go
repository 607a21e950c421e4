// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/finmetrics/internal/clientdata"
	"github.com/aristath/finmetrics/internal/database"
	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/internal/modules/analysis"
	"github.com/aristath/finmetrics/internal/modules/metrics"
	"github.com/aristath/finmetrics/internal/modules/montecarlo"
	"github.com/aristath/finmetrics/internal/modules/optimization"
	"github.com/aristath/finmetrics/internal/scheduler"
)

// Container holds all application dependencies.
// It is created by Wire() and passed to the server for access to services.
type Container struct {
	// Database (nil when the price cache is disabled)
	CacheDB *database.DB

	// Repositories
	PriceCache *clientdata.Repository

	// Clients
	MarketData domain.MarketDataProvider

	// Services
	MetricsEngine   *metrics.Engine
	Simulator       *montecarlo.Simulator
	Optimizer       *optimization.MVOptimizer
	AnalysisService *analysis.Service

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to registered jobs for manual triggering
type JobInstances struct {
	PriceCacheCleanup scheduler.Job // nil when the price cache is disabled
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.CacheDB != nil {
		return c.CacheDB.Close()
	}
	return nil
}

package di

import (
	"fmt"

	"github.com/aristath/finmetrics/internal/clientdata"
	"github.com/aristath/finmetrics/internal/config"
	"github.com/aristath/finmetrics/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers background jobs.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)
	jobs := &JobInstances{}

	if container.PriceCache != nil {
		cleanup := clientdata.NewCleanupJob(container.PriceCache, log)
		if err := container.Scheduler.AddJob(cfg.Cache.CleanupSchedule, cleanup); err != nil {
			return nil, fmt.Errorf("failed to register price cache cleanup job: %w", err)
		}
		jobs.PriceCacheCleanup = cleanup
	}

	return jobs, nil
}

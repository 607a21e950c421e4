package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// cleanupTimeout bounds a single cleanup run
const cleanupTimeout = time.Minute

// CleanupJob removes expired entries from the price cache.
// It should be scheduled to run daily.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new price cache cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "price_cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job, removing all expired entries.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	deleted, err := j.repo.DeleteExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired price series")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Msg("Price cache cleanup completed")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "price_cache_cleanup"
}

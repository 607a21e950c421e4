package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/finmetrics/internal/config"
	"github.com/aristath/finmetrics/internal/database"
	"github.com/rs/zerolog"
)

// CacheDBFile is the price cache file name inside the data directory
const CacheDBFile = "cache.db"

// InitializeDatabases opens the price cache database and applies its schema.
// No database is opened when the cache is disabled.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	if !cfg.Cache.Enabled {
		log.Info().Msg("Price cache disabled")
		return container, nil
	}

	cacheDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, CacheDBFile),
		Name: "cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}

	if err := cacheDB.Migrate(); err != nil {
		cacheDB.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	container.CacheDB = cacheDB

	log.Info().Str("path", cacheDB.Path()).Msg("Cache database initialized")
	return container, nil
}

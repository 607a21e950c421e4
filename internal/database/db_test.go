package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InMemory(t *testing.T) {
	db, err := New(Config{Path: MemoryPath, Name: "cache"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "cache", db.Name())
	require.NoError(t, db.Migrate())

	// Migrate is idempotent
	require.NoError(t, db.Migrate())

	var count int
	err = db.Conn().QueryRow("SELECT COUNT(*) FROM price_series").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, db.QuickCheck(context.Background()))
}

func TestNew_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	db, err := New(Config{Path: path, Name: "cache"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	assert.Equal(t, path, db.Path())

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestBuildConnectionString(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=busy_timeout(5000)", buildConnectionString(MemoryPath))

	connStr := buildConnectionString("/tmp/cache.db")
	assert.Contains(t, connStr, "/tmp/cache.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, connStr, "synchronous(OFF)")
}

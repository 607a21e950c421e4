// Package clientdata caches market data fetched from external providers.
// Price series are stored as msgpack blobs with expiration timestamps for
// cache-first behavior.
package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository provides cache operations for price series.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new price cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// CacheKey identifies a series by provider, symbol and calendar range
func CacheKey(source, symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s",
		source,
		strings.ToUpper(strings.TrimSpace(symbol)),
		start.UTC().Format("2006-01-02"),
		end.UTC().Format("2006-01-02"),
	)
}

// Store saves series with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(ctx context.Context, key string, series domain.PriceSeries, ttl time.Duration) error {
	data, err := msgpack.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to marshal price series: %w", err)
	}

	now := r.now()
	_, err = r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO price_series (cache_key, symbol, data, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		key, series.Symbol, data, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store price series %s: %w", key, err)
	}
	return nil
}

// GetIfFresh returns the series only if expires_at > now.
// Returns nil, nil if the key doesn't exist or the entry is expired.
// Use Get() to retrieve stale data as a fallback when a fetch fails.
func (r *Repository) GetIfFresh(ctx context.Context, key string) (*domain.PriceSeries, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT data FROM price_series WHERE cache_key = ? AND expires_at > ?",
		key, r.now().Unix(),
	)
	return scanSeries(row, key)
}

// Get returns the series regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(ctx context.Context, key string) (*domain.PriceSeries, error) {
	row := r.db.QueryRowContext(ctx, "SELECT data FROM price_series WHERE cache_key = ?", key)
	return scanSeries(row, key)
}

func scanSeries(row *sql.Row, key string) (*domain.PriceSeries, error) {
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price series %s: %w", key, err)
	}

	var series domain.PriceSeries
	if err := msgpack.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price series %s: %w", key, err)
	}
	for i := range series.Bars {
		series.Bars[i].Date = series.Bars[i].Date.UTC()
	}
	return &series, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM price_series WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete price series %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM price_series WHERE expires_at < ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired price series: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of cached series, fresh or stale
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_series").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count price series: %w", err)
	}
	return n, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// The processed_marks table is the default idempotency store: one row per
// stage/content-hash key with an expiry. A redis store can take its place
// when configured (internal/cache).

// IsProcessed reports whether key carries an unexpired processed mark.
// Expired rows are purged lazily on read.
func (d *DB) IsProcessed(ctx context.Context, key string) (bool, error) {
	var expiresAt string
	err := d.sql.QueryRowContext(ctx,
		`SELECT expires_at FROM processed_marks WHERE key = ?`, key).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read mark %q: %w", key, err)
	}

	expiry, err := time.Parse(timeLayout, expiresAt)
	if err != nil || time.Now().After(expiry) {
		d.sql.ExecContext(ctx, `DELETE FROM processed_marks WHERE key = ?`, key)
		return false, nil
	}
	return true, nil
}

// MarkProcessed records key as processed for the given TTL.
func (d *DB) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl).Format(timeLayout)
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO processed_marks (key, expires_at) VALUES (?,?)
		ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at
	`, key, expiresAt)
	if err != nil {
		return fmt.Errorf("write mark %q: %w", key, err)
	}
	return nil
}

// SourceStats returns the row count and latest timestamp for one of the
// classification pipeline's source tables. The pair feeds the per-stage
// state hash that makes stages skip unchanged data.
func (d *DB) SourceStats(ctx context.Context, source string) (int64, string, error) {
	var query string
	switch source {
	case "recipes":
		query = `SELECT COUNT(*), COALESCE(MAX(imported_at), '') FROM recipe_methods`
	case "observations":
		query = `SELECT COUNT(*), COALESCE(MAX(timestamp), '') FROM market_observations`
	case "items":
		query = `SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM items`
	default:
		return 0, "", fmt.Errorf("unknown stats source %q", source)
	}

	var count int64
	var latest string
	if err := d.sql.QueryRowContext(ctx, query).Scan(&count, &latest); err != nil {
		return 0, "", fmt.Errorf("stats for %s: %w", source, err)
	}
	return count, latest, nil
}

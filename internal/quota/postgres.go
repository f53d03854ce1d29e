package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLCounter is the PostgreSQL fallback counter. Rows are never deleted; a
// month rolls over because the month is part of the key.
type SQLCounter struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLCounter creates a counter over an open pool.
func NewSQLCounter(db *sql.DB) *SQLCounter {
	return &SQLCounter{db: db, now: time.Now}
}

const maxIncrAttempts = 3

// Incr bumps the row in place; a missing row is inserted and a lost insert
// race falls back to the update.
func (c *SQLCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	for attempt := 0; attempt < maxIncrAttempts; attempt++ {
		var count int64
		err := c.db.QueryRowContext(ctx,
			`UPDATE usage_counters SET count = count + 1 WHERE counter_key = $1 RETURNING count`,
			key,
		).Scan(&count)
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("quota/postgres: increment: %w", err)
		}

		err = c.db.QueryRowContext(ctx,
			`INSERT INTO usage_counters (counter_key, count, expires_at) VALUES ($1, 1, $2)
			ON CONFLICT (counter_key) DO NOTHING RETURNING count`,
			key, c.now().UTC().Add(ttl),
		).Scan(&count)
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("quota/postgres: create counter: %w", err)
		}
		// Another writer created the row first; retry the update.
	}
	return 0, fmt.Errorf("quota/postgres: increment %q: gave up after %d attempts", key, maxIncrAttempts)
}

// Get reads the current value, 0 when absent.
func (c *SQLCounter) Get(ctx context.Context, key string) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx,
		`SELECT count FROM usage_counters WHERE counter_key = $1`, key,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota/postgres: get: %w", err)
	}
	return count, nil
}

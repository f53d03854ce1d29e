package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are idempotent and applied in order on startup.
var migrations = []struct {
	name string
	sql  string
}{
	{"usage_counters", `CREATE TABLE IF NOT EXISTS usage_counters (
	counter_key TEXT PRIMARY KEY,
	count       BIGINT NOT NULL DEFAULT 0,
	expires_at  TIMESTAMPTZ NOT NULL
)`},
	{"api_credentials", `CREATE TABLE IF NOT EXISTS api_credentials (
	user_id       TEXT NOT NULL,
	tier          TEXT NOT NULL,
	encrypted_key BYTEA NOT NULL,
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, tier)
)`},
	{"interaction_memory", `CREATE TABLE IF NOT EXISTS interaction_memory (
	namespace  TEXT NOT NULL,
	record_key TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (namespace, record_key)
)`},
	{"audit_log", `CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	tier       TEXT NOT NULL,
	action     TEXT NOT NULL,
	agents     JSONB NOT NULL,
	total_cost DOUBLE PRECISION NOT NULL,
	fallback   BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`},
	{"audit_log_user_idx", `CREATE INDEX IF NOT EXISTS audit_log_user_idx ON audit_log (user_id, created_at)`},
}

// Migrate creates the gencore tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("store/postgres: migrate %s: %w", m.name, err)
		}
	}
	return nil
}

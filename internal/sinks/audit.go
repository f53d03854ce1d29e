package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vortexartec/gencore/pkg/models"
)

// AuditEntry records a completed orchestration for compliance review.
type AuditEntry struct {
	RequestID string        `json:"request_id"`
	UserID    string        `json:"user_id"`
	Tier      string        `json:"tier"`
	Action    models.Action `json:"action"`
	Agents    []string      `json:"agents"`
	TotalCost float64       `json:"total_cost"`
	Fallback  bool          `json:"fallback"`
	At        time.Time     `json:"at"`
}

// AuditLog appends audit entries.
type AuditLog interface {
	Record(ctx context.Context, e AuditEntry) error
}

var (
	_ AuditLog = (*SQLAuditLog)(nil)
	_ AuditLog = (*MemoryAuditLog)(nil)
	_ AuditLog = (*LogAuditLog)(nil)
)

// SQLAuditLog writes to the audit_log table.
type SQLAuditLog struct {
	db *sql.DB
}

func NewSQLAuditLog(db *sql.DB) *SQLAuditLog {
	return &SQLAuditLog{db: db}
}

func (a *SQLAuditLog) Record(ctx context.Context, e AuditEntry) error {
	agents, err := json.Marshal(e.Agents)
	if err != nil {
		return fmt.Errorf("audit/postgres: marshal agents: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO audit_log (request_id, user_id, tier, action, agents, total_cost, fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.RequestID, e.UserID, e.Tier, string(e.Action), agents, e.TotalCost, e.Fallback, e.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit/postgres: insert: %w", err)
	}
	return nil
}

// MemoryAuditLog keeps entries in process.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *MemoryAuditLog) Record(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryAuditLog) Entries() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.entries...)
}

// LogAuditLog emits entries as info logs.
type LogAuditLog struct {
	Log zerolog.Logger
}

func (l *LogAuditLog) Record(_ context.Context, e AuditEntry) error {
	l.Log.Info().
		Str("request_id", e.RequestID).
		Str("user_id", e.UserID).
		Str("tier", e.Tier).
		Str("action", string(e.Action)).
		Strs("agents", e.Agents).
		Float64("total_cost", e.TotalCost).
		Bool("fallback", e.Fallback).
		Msg("📋 Audit")
	return nil
}

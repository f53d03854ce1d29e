package sinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vortexartec/gencore/pkg/contracts"
)

var (
	_ contracts.MemoryStore = (*SQLMemoryStore)(nil)
	_ contracts.MemoryStore = (*RedisMemoryStore)(nil)
	_ contracts.MemoryStore = (*MapMemoryStore)(nil)
)

// ── PostgreSQL ───────────────────────────────────────────────

// SQLMemoryStore upserts records into interaction_memory.
type SQLMemoryStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLMemoryStore(db *sql.DB) *SQLMemoryStore {
	return &SQLMemoryStore{db: db, now: time.Now}
}

func (s *SQLMemoryStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interaction_memory (namespace, record_key, value, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, record_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		namespace, key, value, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("memory/postgres: put: %w", err)
	}
	return nil
}

func (s *SQLMemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM interaction_memory WHERE namespace = $1 AND record_key = $2`,
		namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memory/postgres: get: %w", err)
	}
	return value, nil
}

// ── Redis ────────────────────────────────────────────────────

// RedisMemoryStore keeps records as plain keys with a retention TTL.
type RedisMemoryStore struct {
	client    goredis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

// NewRedisMemoryStore creates a store; ttl <= 0 keeps records forever.
func NewRedisMemoryStore(client goredis.Cmdable, keyPrefix string, ttl time.Duration) *RedisMemoryStore {
	return &RedisMemoryStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisMemoryStore) key(namespace, key string) string {
	return s.keyPrefix + "memory:" + namespace + ":" + key
}

func (s *RedisMemoryStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("memory/redis: put: %w", err)
	}
	return nil
}

func (s *RedisMemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(namespace, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memory/redis: get: %w", err)
	}
	return v, nil
}

// ── In-memory ────────────────────────────────────────────────

// MapMemoryStore is the zero-config store.
type MapMemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMapMemoryStore() *MapMemoryStore {
	return &MapMemoryStore{data: make(map[string][]byte)}
}

func (m *MapMemoryStore) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[namespace+"\x00"+key] = append([]byte(nil), value...)
	return nil
}

func (m *MapMemoryStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[namespace+"\x00"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Len reports the number of stored records.
func (m *MapMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

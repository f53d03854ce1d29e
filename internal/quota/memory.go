package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is an in-process counter with expiry. It is the zero-config
// default and is not shared between replicas.
type MemoryCounter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounter creates an empty counter set.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		counters: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for expiry.
func (m *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	m.now = now
	return m
}

func (m *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.counters[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		m.counters[key] = e
	}
	e.count++
	return e.count, nil
}

func (m *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.counters[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

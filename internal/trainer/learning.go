package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vortexartec/gencore/pkg/models"
)

// LearningState keeps the most recent feedback records for online learners.
type LearningState interface {
	Push(ctx context.Context, rec models.FeedbackRecord) error
	Recent(ctx context.Context, n int) ([]models.FeedbackRecord, error)
}

var (
	_ LearningState = (*RedisLearningState)(nil)
	_ LearningState = (*MemoryLearningState)(nil)
)

// RedisLearningState is a capped Redis list, newest first.
type RedisLearningState struct {
	client goredis.Cmdable
	key    string
	cap    int64
}

func NewRedisLearningState(client goredis.Cmdable, keyPrefix string, capacity int64) *RedisLearningState {
	return &RedisLearningState{client: client, key: keyPrefix + "learning:feedback", cap: capacity}
}

func (s *RedisLearningState) Push(ctx context.Context, rec models.FeedbackRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("learning/redis: marshal: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.LPush(ctx, s.key, data)
		p.LTrim(ctx, s.key, 0, s.cap-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("learning/redis: push: %w", err)
	}
	return nil
}

func (s *RedisLearningState) Recent(ctx context.Context, n int) ([]models.FeedbackRecord, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("learning/redis: range: %w", err)
	}
	out := make([]models.FeedbackRecord, 0, len(raw))
	for _, r := range raw {
		var rec models.FeedbackRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			return nil, fmt.Errorf("learning/redis: decode: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// MemoryLearningState is a fixed-size ring.
type MemoryLearningState struct {
	mu   sync.Mutex
	ring []models.FeedbackRecord
	next int
	full bool
}

func NewMemoryLearningState(capacity int64) *MemoryLearningState {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryLearningState{ring: make([]models.FeedbackRecord, capacity)}
}

func (s *MemoryLearningState) Push(_ context.Context, rec models.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring[s.next] = rec
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *MemoryLearningState) Recent(_ context.Context, n int) ([]models.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.next
	if s.full {
		size = len(s.ring)
	}
	if n > size {
		n = size
	}
	out := make([]models.FeedbackRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, s.ring[(s.next-i+len(s.ring))%len(s.ring)])
	}
	return out, nil
}

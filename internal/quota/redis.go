package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisCounter is a Redis-backed monthly counter.
type RedisCounter struct {
	client    goredis.Cmdable
	keyPrefix string
}

// Option configures RedisCounter.
type Option func(*RedisCounter)

// WithKeyPrefix sets the Redis key prefix (default "gencore:quota:").
func WithKeyPrefix(prefix string) Option {
	return func(c *RedisCounter) { c.keyPrefix = prefix }
}

// NewRedisCounter creates a counter on a connected client.
func NewRedisCounter(client goredis.Cmdable, opts ...Option) *RedisCounter {
	c := &RedisCounter{
		client:    client,
		keyPrefix: "gencore:quota:",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// incrScript increments and sets the expiry only when the key was created.
// KEYS[1] = counter key
// ARGV[1] = ttl in milliseconds
var incrScript = goredis.NewScript(`
local v = redis.call("INCR", KEYS[1])
if v == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return v
`)

// Incr atomically increments key and returns the new value.
func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	v, err := incrScript.Run(ctx, c.client, []string{c.keyPrefix + key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("quota/redis: incr: %w", err)
	}
	return v, nil
}

// Get returns the current value, 0 when absent.
func (c *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Get(ctx, c.keyPrefix+key).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota/redis: get: %w", err)
	}
	return v, nil
}

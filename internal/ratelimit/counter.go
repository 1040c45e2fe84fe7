package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterKeyPrefix = "rate_limit"

// Counter is the atomic per-window request counter backing the limiter.
// Increment must set the window TTL on first increment in the same round trip
// so concurrent bursts converge without a distributed lock.
type Counter interface {
	Increment(ctx context.Context, typ Type, identifier, endpoint string, window time.Duration) (int64, error)
	Current(ctx context.Context, typ Type, identifier, endpoint string) (int64, error)
	Reset(ctx context.Context, typ Type, identifier, endpoint string) error
}

// RedisCounter implements Counter on Redis string counters.
type RedisCounter struct {
	rdb *redis.Client
}

var _ Counter = (*RedisCounter)(nil)

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Increment bumps the counter and arms the TTL if the key is new, in one
// pipelined transaction. Returns the count after the increment.
func (c *RedisCounter) Increment(ctx context.Context, typ Type, identifier, endpoint string, window time.Duration) (int64, error) {
	key, err := counterKey(typ, identifier, endpoint)
	if err != nil {
		return 0, err
	}
	if window < time.Second {
		return 0, fmt.Errorf("%w: window must be at least 1s, got %s", ErrInvalidInput, window)
	}
	var incr *redis.IntCmd
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ratelimit: increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Current returns the counter value without modifying it; a missing key is zero.
func (c *RedisCounter) Current(ctx context.Context, typ Type, identifier, endpoint string) (int64, error) {
	key, err := counterKey(typ, identifier, endpoint)
	if err != nil {
		return 0, err
	}
	n, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ratelimit: read %s: %w", key, err)
	}
	return n, nil
}

// Reset deletes the counter; deleting an absent key is not an error.
func (c *RedisCounter) Reset(ctx context.Context, typ Type, identifier, endpoint string) error {
	key, err := counterKey(typ, identifier, endpoint)
	if err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("ratelimit: reset %s: %w", key, err)
	}
	return nil
}

func counterKey(typ Type, identifier, endpoint string) (string, error) {
	if !typ.valid() {
		return "", fmt.Errorf("%w: unknown rate limit type %q", ErrInvalidInput, typ)
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", fmt.Errorf("%w: identifier is required", ErrInvalidInput)
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}
	return fmt.Sprintf("%s:%s:%s:%s", counterKeyPrefix, typ, identifier, endpoint), nil
}

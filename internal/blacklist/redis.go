package blacklist

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"authhub.org/internal/obs"
)

const (
	setKey          = "blacklist:tokens"
	zsetKey         = "blacklist:expiry"
	detailKeyPrefix = "blacklist_token:"
)

// RedisRegistry implements Registry over three Redis structures: a hash per
// jti for details, a set for O(1) membership, and a sorted set scored by
// expiry for bounded sweeps.
type RedisRegistry struct {
	rdb *redis.Client
	now func() time.Time
}

var _ Registry = (*RedisRegistry)(nil)

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, now: time.Now}
}

// Add writes the detail hash first, then inserts membership and expiry score
// in one transaction. If the transaction fails the detail record is rolled
// back best-effort; a surviving orphan self-expires via its TTL and is
// otherwise collected by the next sweep. The error always propagates.
func (r *RedisRegistry) Add(ctx context.Context, tok Token) error {
	if strings.TrimSpace(tok.JTI) == "" {
		return fmt.Errorf("%w: jti is required", ErrInvalidInput)
	}
	detail := detailKeyPrefix + tok.JTI
	score := float64(tok.ExpiresAt.UnixMilli()) / 1000.0

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, detail, map[string]any{
			"id":             tok.ID,
			"jti":            tok.JTI,
			"reason":         string(tok.Reason),
			"expires_at":     tok.ExpiresAt.UnixMilli(),
			"blacklisted_at": tok.BlacklistedAt.UnixMilli(),
		})
		if ttl := tok.ExpiresAt.Sub(r.now()); ttl > 0 {
			pipe.Expire(ctx, detail, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("blacklist: write detail for %s: %w", tok.JTI, err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, setKey, tok.JTI)
		pipe.ZAdd(ctx, zsetKey, redis.Z{Score: score, Member: tok.JTI})
		return nil
	})
	if err != nil {
		if delErr := r.rdb.Del(ctx, detail).Err(); delErr != nil {
			obs.Log("warn", "blacklist detail rollback failed", map[string]any{
				"jti":   tok.JTI,
				"error": delErr.Error(),
			})
		}
		return fmt.Errorf("blacklist: add %s: %w", tok.JTI, err)
	}
	return nil
}

// Exists checks set membership.
func (r *RedisRegistry) Exists(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, fmt.Errorf("%w: jti is required", ErrInvalidInput)
	}
	member, err := r.rdb.SIsMember(ctx, setKey, jti).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist: membership check for %s: %w", jti, err)
	}
	return member, nil
}

// FindExpiredJtis range-queries the expiry index up to maxEpochSeconds,
// capped at limit entries.
func (r *RedisRegistry) FindExpiredJtis(ctx context.Context, maxEpochSeconds int64, limit int64) ([]string, error) {
	if maxEpochSeconds < 0 {
		return nil, fmt.Errorf("%w: max epoch seconds cannot be negative: %d", ErrInvalidInput, maxEpochSeconds)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive: %d", ErrInvalidInput, limit)
	}
	jtis, err := r.rdb.ZRangeByScore(ctx, zsetKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(maxEpochSeconds, 10),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("blacklist: expired range query: %w", err)
	}
	return jtis, nil
}

// RemoveAll deletes detail records, then takes the jtis out of the membership
// set and expiry index in one transaction. Returns the membership removals.
func (r *RedisRegistry) RemoveAll(ctx context.Context, jtis []string) (int64, error) {
	if len(jtis) == 0 {
		return 0, fmt.Errorf("%w: jti list is empty", ErrInvalidInput)
	}
	detailKeys := make([]string, len(jtis))
	members := make([]any, len(jtis))
	for i, jti := range jtis {
		if strings.TrimSpace(jti) == "" {
			return 0, fmt.Errorf("%w: jti is required", ErrInvalidInput)
		}
		detailKeys[i] = detailKeyPrefix + jti
		members[i] = jti
	}

	if err := r.rdb.Del(ctx, detailKeys...).Err(); err != nil {
		return 0, fmt.Errorf("blacklist: delete details: %w", err)
	}

	var removed *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, setKey, members...)
		pipe.ZRem(ctx, zsetKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("blacklist: remove members: %w", err)
	}
	return removed.Val(), nil
}

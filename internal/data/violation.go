package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RedisViolationCounter implements biz.ViolationCounter on a Redis counter
// per user. The counter backs security monitoring, not the audit trail:
// the durable record of each forbidden attempt lives in the audit ledger,
// so the counter is allowed to degrade when Redis is down.
type RedisViolationCounter struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewViolationCounter creates the counter.
func NewViolationCounter(rdb *redis.Client, logger log.Logger) *RedisViolationCounter {
	return &RedisViolationCounter{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// Increment bumps the forbidden-attempt counter for userID and returns
// the new value.
func (c *RedisViolationCounter) Increment(ctx context.Context, userID string) (int64, error) {
	if c.rdb == nil {
		return 0, errors.New("violation counter: redis client is nil")
	}
	count, err := c.rdb.Incr(ctx, BuildCacheKey(CacheKeyViolations, userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("violation counter: increment for %s: %w", userID, err)
	}
	return count, nil
}

// Count returns the current forbidden-attempt count for userID.
func (c *RedisViolationCounter) Count(ctx context.Context, userID string) (int64, error) {
	if c.rdb == nil {
		return 0, errors.New("violation counter: redis client is nil")
	}
	val, err := c.rdb.Get(ctx, BuildCacheKey(CacheKeyViolations, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("violation counter: read for %s: %w", userID, err)
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("violation counter: parse value %q for %s: %w", val, userID, err)
	}
	return count, nil
}

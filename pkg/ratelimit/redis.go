package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCounterCache shares fixed-window counters across instances through
// a single redis INCR per request. Because the redis key embeds the window
// start, a rolled-over window lands on a fresh key and the stale counter
// simply expires.
type RedisCounterCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCounterCache(client *redis.Client, prefix string) *RedisCounterCache {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisCounterCache{client: client, prefix: prefix}
}

// CheckAndIncrement atomically counts the request in redis. INCR and the
// TTL refresh travel in one pipeline round trip; the TTL outlives the
// window slightly so a counter never vanishes mid-window.
func (r *RedisCounterCache) CheckAndIncrement(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	now := time.Now()
	start := windowStart(now, window)
	resetTime := start.Add(window)

	redisKey := fmt.Sprintf("%s:%s:%d", r.prefix, key, start.UnixMilli())

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("incrementing counter %s: %w", redisKey, err)
	}

	count := incr.Val()
	remaining := int64(max) - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(max),
		Remaining: int(remaining),
		ResetTime: resetTime,
	}, nil
}

// Ping verifies the redis connection for health checks.
func (r *RedisCounterCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

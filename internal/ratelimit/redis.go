package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter backs windows with a shared Redis instance so the limit holds
// across multiple processes. The counter keeps incrementing past the limit;
// the window expiry is armed once per key and is never extended by denied
// hits.
type RedisLimiter struct {
	client    *redis.Client
	windowLen time.Duration
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter.
func NewRedisLimiter(client *redis.Client, windowLen time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, windowLen: windowLen}
}

// Allow implements Limiter. On Redis errors the hit is allowed: losing a
// throttle beat is preferable to blocking logins on a cache outage.
func (l *RedisLimiter) Allow(ctx context.Context, bucket, key string, limit int) bool {
	rkey := fmt.Sprintf("rl:%s:%s", bucket, key)

	hits, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		return true
	}
	// ExpireNX arms the window only when the key has no expiry yet, which
	// also repairs a key that lost its TTL to a crash between INCR and
	// EXPIRE; without it such a key would throttle forever.
	if err := l.client.ExpireNX(ctx, rkey, l.windowLen).Err(); err != nil {
		return true
	}
	return hits <= int64(limit)
}

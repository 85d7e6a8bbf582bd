package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a fixed-window counter shared by every instance pointing at the
// same Redis. On Redis errors it fails open and returns the error alongside.
type Redis struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

var _ Limiter = (*Redis)(nil)

func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = "groupgate:ratelimit"
	}
	if window <= 0 {
		window = time.Second
	}
	return &Redis{client: client, limit: int64(limit), window: window, prefix: prefix}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", r.prefix, key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true}, fmt.Errorf("redis error: %w", err)
	}
	// A fresh key, or one that lost its expiry, starts a new window.
	if ttl.Val() < 0 {
		if err := r.client.PExpire(ctx, redisKey, r.window).Err(); err != nil {
			return Decision{Allowed: true}, fmt.Errorf("redis error: %w", err)
		}
	}
	if incr.Val() <= r.limit {
		return Decision{Allowed: true}, nil
	}
	retry := ttl.Val()
	if retry <= 0 {
		retry = r.window
	}
	return Decision{RetryAfter: retry}, nil
}

// Reset clears the counter for key.
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, fmt.Sprintf("%s:%s", r.prefix, key)).Err()
}

// Check pings Redis.
func (r *Redis) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RateLimiter is a fixed-window request counter shared by all API
// instances. Each key gets limit requests per window.
type RateLimiter struct {
	cache  *Cache
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(cache *Cache, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{cache: cache, limit: int64(limit), window: window}
}

// Allow counts one request for key and reports whether it fits the window.
// Callers should fail open on error.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	bucket := now.Truncate(r.window).Unix()
	k := PrefixRateLimit + key + ":" + strconv.FormatInt(bucket, 10)

	var count int64
	err := r.cache.do(ctx, func(ctx context.Context) error {
		pipe := r.cache.client.TxPipeline()
		incr := pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, r.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		count = incr.Val()
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("ratelimit: %w", err)
	}
	return count <= r.limit, nil
}

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// DistributedRateLimiter implements a fixed-window counter in Redis so
// limits hold across multiple instances. Redis errors fail open: an
// unavailable limiter must not lock everyone out of login.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit:login"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow increments the key's window counter and checks it against the limit.
// The increment and expiry run in one pipeline round trip.
func (rl *DistributedRateLimiter) Allow(r *http.Request, key string) bool {
	ctx := r.Context()
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("rate limiter redis unavailable, failing open")
		return true
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow+rl.config.BurstSize)
}

// Remaining returns the requests left in the current window for a key
func (rl *DistributedRateLimiter) Remaining(r *http.Request, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(r.Context(), redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow + rl.config.BurstSize, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow + rl.config.BurstSize - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the counter for a key
func (rl *DistributedRateLimiter) Reset(r *http.Request, key string) error {
	return rl.redis.Del(r.Context(), fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// TTL returns the time until the window for a key resets
func (rl *DistributedRateLimiter) TTL(r *http.Request, key string) (time.Duration, error) {
	return rl.redis.TTL(r.Context(), fmt.Sprintf("%s:%s", rl.prefix, key)).Result()
}

package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// RateLimitConfig defines rate limiting for the credential endpoints
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
	// MaxKeys bounds the number of tracked clients in memory
	MaxKeys int
}

// DefaultLoginRateLimitConfig returns the default limits for the login
// endpoint. Login is deliberately tight: each attempt costs a bcrypt
// comparison and the endpoint is the natural target for credential stuffing.
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         5,
		MaxKeys:           16384,
	}
}

// Limiter decides whether a request from the given key may proceed
type Limiter interface {
	Allow(r *http.Request, key string) bool
}

// RateLimiter is an in-process token bucket limiter keyed by client. Buckets
// live in a bounded LRU so a scan across many source addresses cannot grow
// memory without bound.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.Cache[string, *bucket]
	mu      sync.Mutex
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates an in-process limiter
func NewRateLimiter(config *RateLimitConfig) (*RateLimiter, error) {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	maxKeys := config.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 16384
	}
	buckets, err := lru.New[string, *bucket](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket cache: %w", err)
	}
	return &RateLimiter{config: config, buckets: buckets}, nil
}

// Allow takes one token from the key's bucket, refilling by elapsed time
func (rl *RateLimiter) Allow(_ *http.Request, key string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets.Get(key)
	if !ok {
		b = &bucket{
			tokens:     float64(rl.config.RequestsPerWindow + rl.config.BurstSize),
			lastUpdate: time.Now(),
		}
		rl.buckets.Add(key, b)
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate)
	refill := elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	if refill > 0 {
		b.tokens += refill
		max := float64(rl.config.RequestsPerWindow + rl.config.BurstSize)
		if b.tokens > max {
			b.tokens = max
		}
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// LoginRateLimit wraps the login handler with per-client-IP rate limiting.
// Rejections are 429 with a Retry-After hint and count toward the
// rate-limited metric.
func LoginRateLimit(limiter Limiter, window time.Duration, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if !limiter.Allow(r, key) {
				if metrics != nil {
					metrics.RateLimitedTotal.WithLabelValues("login").Inc()
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", window.Seconds()))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"detail":"Too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

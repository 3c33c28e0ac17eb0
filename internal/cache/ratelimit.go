package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creditgate/creditgate/internal/throttle"
)

// attemptPrefix is the Redis key prefix for registration attempt windows.
const attemptPrefix = "throttle:attempts:"

// fixedWindowScript counts an attempt unless the window is already full.
// Denied attempts leave the counter untouched.
// Returns {allowed, count, pttl_ms}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])

	local count = tonumber(redis.call('GET', key) or '0')
	if count >= limit then
		return {0, count, redis.call('PTTL', key)}
	end

	count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end

	return {1, count, redis.call('PTTL', key)}
`)

// CheckAttemptWindow records an attempt from ip in a fixed window of the
// given length. At most limit attempts are allowed per window.
func (c *Cache) CheckAttemptWindow(ctx context.Context, ip string, limit int, window time.Duration) (*throttle.Result, error) {
	key := attemptPrefix + hashIP(ip)

	values, err := fixedWindowScript.Run(ctx, c.client,
		[]string{key},
		limit, window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run fixed window script: %w", err)
	}

	return attemptResult(values, limit, window)
}

// attemptResult turns a {allowed, count, pttl_ms} script reply into a
// throttle result.
func attemptResult(values []int64, limit int, window time.Duration) (*throttle.Result, error) {
	if len(values) != 3 {
		return nil, fmt.Errorf("fixed window script: unexpected reply length %d", len(values))
	}

	allowed := values[0] == 1
	count := int(values[1])

	ttl := time.Duration(values[2]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &throttle.Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
	if !allowed {
		result.RetryAfter = ttl
	}

	return result, nil
}

// AttemptLimiter adapts CheckAttemptWindow to throttle.Limiter.
type AttemptLimiter struct {
	cache  *Cache
	limit  int
	window time.Duration
}

// NewAttemptLimiter returns a Redis-backed throttle.Limiter.
func NewAttemptLimiter(c *Cache, limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{cache: c, limit: limit, window: window}
}

// Allow implements throttle.Limiter.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) (*throttle.Result, error) {
	return l.cache.CheckAttemptWindow(ctx, key, l.limit, l.window)
}

// hashIP creates a truncated SHA256 hash of an IP address so raw client
// addresses never end up in Redis.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}

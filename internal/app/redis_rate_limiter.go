/**
 * @description
 * Redis-backed rate limiter for multi-instance deployments. A Lua script
 * keeps the INCR and expiry atomic so concurrent requests cannot create a
 * counter with no TTL.
 */

package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisRateLimiter enforces a fixed window of maxRequests per window per
// key, shared across service instances through Redis.
type RedisRateLimiter struct {
	client      redis.UniversalClient
	prefix      string
	window      time.Duration
	maxRequests int
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string, window time.Duration, maxRequests int) *RedisRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "bramlijst:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisRateLimiter{
		client:      client,
		prefix:      trimmedPrefix,
		window:      window,
		maxRequests: maxRequests,
	}
}

func (r *RedisRateLimiter) Check(ctx context.Context, key string) (Decision, error) {
	if r == nil || r.client == nil || r.maxRequests <= 0 || r.window <= 0 {
		return Decision{Allowed: true}, nil
	}

	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return Decision{Allowed: true}, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	redisKey := fmt.Sprintf("%s:%s", r.prefix, normalizedKey)
	rawResult, err := rateLimitScript.Run(ctx, r.client, []string{redisKey}, windowMs).Result()
	if err != nil {
		return Decision{}, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	count, ok := values[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	if count > int64(r.maxRequests) {
		retryAfterSec := math.Ceil(float64(ttlMs) / 1000.0)
		if retryAfterSec < 1 {
			retryAfterSec = 1
		}
		return Decision{Allowed: false, RetryAfter: time.Duration(retryAfterSec) * time.Second}, nil
	}

	return Decision{Allowed: true}, nil
}

/**
 * @description
 * Sliding-window rate limiting for public endpoints. The in-memory limiter
 * keeps per-key request timestamps and is sufficient for a single instance;
 * deployments with Redis available use the Redis-backed limiter instead.
 *
 * Limiter failures never block traffic: callers treat an error from Check
 * as an allow. Abuse protection degrades, the checkout path stays up.
 */

package app

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Check(ctx context.Context, key string) (Decision, error)
}

// MemoryRateLimiter enforces a sliding window of maxRequests per window
// per key, entirely in process memory.
type MemoryRateLimiter struct {
	window      time.Duration
	maxRequests int

	mu      sync.Mutex
	entries map[string][]time.Time

	now func() time.Time
}

// NewMemoryRateLimiter builds a limiter and starts a background janitor
// that evicts idle keys. The janitor stops when ctx is cancelled.
func NewMemoryRateLimiter(ctx context.Context, window time.Duration, maxRequests int) *MemoryRateLimiter {
	rl := &MemoryRateLimiter{
		window:      window,
		maxRequests: maxRequests,
		entries:     make(map[string][]time.Time),
		now:         time.Now,
	}
	go rl.janitor(ctx)
	return rl
}

// Check records the request and reports whether it is within the window
// budget. When denied, RetryAfter is the time until the oldest counted
// request leaves the window.
func (rl *MemoryRateLimiter) Check(_ context.Context, key string) (Decision, error) {
	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.entries[key]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.maxRequests {
		rl.entries[key] = kept
		retryAfter := kept[0].Add(rl.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	rl.entries[key] = append(kept, now)
	return Decision{Allowed: true}, nil
}

func (rl *MemoryRateLimiter) janitor(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictStale()
		}
	}
}

func (rl *MemoryRateLimiter) evictStale() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, timestamps := range rl.entries {
		live := false
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(rl.entries, key)
		}
	}
}

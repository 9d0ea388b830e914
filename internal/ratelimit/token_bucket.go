package ratelimit

import (
	"sync"
	"time"
)

// TokenBucketLimiter implements continuous-refill admission control. Tokens
// accrue at RequestsPerHour/3600 per second up to the burst capacity; refill
// is computed lazily on every access, so an idle limiter still reports a
// correct token count the next time it is queried.
type TokenBucketLimiter struct {
	name       string
	config     Config
	capacity   float64
	refillRate float64 // tokens per second

	mutex      sync.Mutex
	tokens     float64
	lastRefill time.Time

	now func() time.Time
}

// NewTokenBucket creates a token bucket limiter for the given dependency.
func NewTokenBucket(name string, config Config) *TokenBucketLimiter {
	capacity := float64(config.burst())

	return &TokenBucketLimiter{
		name:       name,
		config:     config,
		capacity:   capacity,
		refillRate: float64(config.RequestsPerHour) / windowSize.Seconds(),
		tokens:     capacity,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Name returns the dependency name the limiter guards.
func (tb *TokenBucketLimiter) Name() string {
	return tb.name
}

// Acquire spends n tokens, refilling first. Refill and spend happen
// atomically under the instance mutex. When fewer than n tokens are
// available the call is rejected immediately with the time at which enough
// tokens will have accrued.
func (tb *TokenBucketLimiter) Acquire(n int) error {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := tb.now()
	tb.refill(now)

	needed := float64(n)
	if tb.tokens >= needed {
		tb.tokens -= needed
		return nil
	}

	waitSeconds := (needed - tb.tokens) / tb.refillRate
	return &LimitError{
		Name:      tb.name,
		ResetTime: now.Add(time.Duration(waitSeconds * float64(time.Second))),
	}
}

// Status recomputes the refill before reporting so reads are never stale.
func (tb *TokenBucketLimiter) Status() Status {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill(tb.now())

	return Status{
		Name:            tb.name,
		Algorithm:       TokenBucket,
		RequestsPerHour: tb.config.RequestsPerHour,
		AvailableTokens: tb.tokens,
		Capacity:        int(tb.capacity),
		RefillPerSecond: tb.refillRate,
	}
}

// refill adds elapsed*rate tokens capped at capacity. Must be called with
// tb.mutex held.
func (tb *TokenBucketLimiter) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.refillRate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
	}
	tb.lastRefill = now
}

// Package ratelimit provides per-dependency admission control for calls to
// quota-constrained external services. Two algorithms are available: a token
// bucket with burst capacity and an exact-count sliding window. Limiters never
// block; a call that would exceed the quota is rejected immediately with a
// *LimitError carrying the time at which capacity becomes available again.
package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Algorithm selects the admission-control algorithm for a limiter.
type Algorithm string

const (
	// TokenBucket accrues capacity continuously at a fixed rate up to a cap
	// and spends it per request. Default.
	TokenBucket Algorithm = "token_bucket"

	// SlidingWindow counts requests whose timestamps fall within the trailing
	// window, independent of any refill rate.
	SlidingWindow Algorithm = "sliding_window"
)

// windowSize is the trailing window over which request counts apply. Both
// algorithms express their quota as requests per hour.
const windowSize = time.Hour

// Config holds configuration for a rate limiter
type Config struct {
	// RequestsPerHour is the sustained admission quota. Required.
	RequestsPerHour int

	// BurstLimit caps how many requests may be admitted back to back.
	// If BurstLimit is 0, it is derived as max(10, RequestsPerHour/60).
	BurstLimit int
}

// burst returns the effective burst limit.
func (c Config) burst() int {
	if c.BurstLimit > 0 {
		return c.BurstLimit
	}

	derived := c.RequestsPerHour / 60
	if derived < 10 {
		derived = 10
	}
	return derived
}

func (c Config) validate() error {
	if c.RequestsPerHour <= 0 {
		return fmt.Errorf("requests_per_hour must be positive, got %d", c.RequestsPerHour)
	}
	if c.BurstLimit < 0 {
		return fmt.Errorf("burst_limit must be non-negative, got %d", c.BurstLimit)
	}
	return nil
}

// LimitError is returned when a limiter rejects a call because the requested
// tokens would exceed capacity or the window limit.
type LimitError struct {
	Name      string
	ResetTime time.Time
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q, retry after %s", e.Name, time.Until(e.ResetTime).Round(time.Millisecond))
}

// RetryAfter returns how long the caller should wait before retrying.
func (e *LimitError) RetryAfter() time.Duration {
	return time.Until(e.ResetTime)
}

// IsLimited reports whether err is a rate-limit rejection.
func IsLimited(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// Status is a read-only snapshot of a limiter, rendered as JSON by the
// operational status endpoints. Fields not applicable to the limiter's
// algorithm are omitted.
type Status struct {
	Name            string    `json:"name"`
	Algorithm       Algorithm `json:"algorithm"`
	RequestsPerHour int       `json:"requests_per_hour"`

	// Token bucket
	AvailableTokens float64 `json:"available_tokens,omitempty"`
	Capacity        int     `json:"capacity,omitempty"`
	RefillPerSecond float64 `json:"refill_rate_per_second,omitempty"`

	// Sliding window
	WindowSeconds int `json:"window_seconds,omitempty"`
	CurrentCount  int `json:"current_count,omitempty"`
	Remaining     int `json:"remaining,omitempty"`
}

// Limiter is one rate-limiter instance guarding one named dependency.
// Implementations are safe for concurrent use; Acquire never blocks waiting
// for capacity.
type Limiter interface {
	// Name returns the dependency name the limiter guards.
	Name() string

	// Acquire admits n requests or returns a *LimitError. Counters are purely
	// time based; no release step exists.
	Acquire(n int) error

	// Status reports a consistent snapshot. Lazy refill/prune bookkeeping
	// runs first so the snapshot is never stale relative to elapsed time.
	Status() Status
}

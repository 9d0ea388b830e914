package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowLimiter implements exact-count admission control over a
// rolling one-hour window. Every admitted request records its timestamp;
// entries older than the window are pruned lazily on every access, so memory
// is bounded by traffic volume within the last window rather than by
// wall-clock ticks.
type SlidingWindowLimiter struct {
	name   string
	config Config

	mutex      sync.Mutex
	timestamps []time.Time // chronological

	now func() time.Time
}

// NewSlidingWindow creates a sliding window limiter for the given dependency.
func NewSlidingWindow(name string, config Config) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		name:   name,
		config: config,
		now:    time.Now,
	}
}

// Name returns the dependency name the limiter guards.
func (sw *SlidingWindowLimiter) Name() string {
	return sw.name
}

// Acquire admits n requests if they fit within the window limit. A request
// batch larger than the limit itself is always rejected, regardless of
// current window occupancy.
func (sw *SlidingWindowLimiter) Acquire(n int) error {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	now := sw.now()
	sw.prune(now)

	if len(sw.timestamps)+n > sw.config.RequestsPerHour {
		resetTime := now.Add(windowSize)
		if len(sw.timestamps) > 0 {
			// Capacity frees up when the oldest in-window request expires.
			resetTime = sw.timestamps[0].Add(windowSize)
		}
		return &LimitError{Name: sw.name, ResetTime: resetTime}
	}

	for i := 0; i < n; i++ {
		sw.timestamps = append(sw.timestamps, now)
	}
	return nil
}

// Status prunes expired entries, then reports the in-window count and
// remaining capacity.
func (sw *SlidingWindowLimiter) Status() Status {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	sw.prune(sw.now())

	count := len(sw.timestamps)
	remaining := sw.config.RequestsPerHour - count
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		Name:            sw.name,
		Algorithm:       SlidingWindow,
		RequestsPerHour: sw.config.RequestsPerHour,
		WindowSeconds:   int(windowSize / time.Second),
		CurrentCount:    count,
		Remaining:       remaining,
	}
}

// prune drops timestamps older than now-window. Must be called with
// sw.mutex held.
func (sw *SlidingWindowLimiter) prune(now time.Time) {
	cutoff := now.Add(-windowSize)

	expired := 0
	for expired < len(sw.timestamps) && !sw.timestamps[expired].After(cutoff) {
		expired++
	}

	if expired > 0 {
		sw.timestamps = append(sw.timestamps[:0], sw.timestamps[expired:]...)
	}
}

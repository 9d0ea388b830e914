package ratelimit

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager is a named registry of rate limiters, one per external dependency.
// Limiters are created once at startup and looked up by name afterwards.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
	logger   *zap.Logger
}

// NewManager creates an empty limiter registry.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		limiters: make(map[string]Limiter),
		logger:   logger,
	}
}

// Create registers and returns a new limiter using the given algorithm.
// An empty algorithm selects the token bucket; anything else unknown is a
// configuration error. Registering a name twice replaces the previous entry,
// in-window counters included; callers are expected to register each name
// exactly once at startup.
func (m *Manager) Create(name string, config Config, algorithm Algorithm) (Limiter, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("rate limiter %q: %w", name, err)
	}

	var limiter Limiter
	switch algorithm {
	case TokenBucket, "":
		limiter = NewTokenBucket(name, config)
	case SlidingWindow:
		limiter = NewSlidingWindow(name, config)
	default:
		return nil, fmt.Errorf("rate limiter %q: unknown algorithm %q", name, algorithm)
	}

	m.mu.Lock()
	if _, exists := m.limiters[name]; exists {
		m.logger.Warn("replacing existing rate limiter", zap.String("name", name))
	}
	m.limiters[name] = limiter
	m.mu.Unlock()

	return limiter, nil
}

// Get returns the limiter registered under name.
func (m *Manager) Get(name string) (Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.limiters[name]
	return l, ok
}

// Status returns a snapshot of every registered limiter, keyed by name.
func (m *Manager) Status() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]Status, len(m.limiters))
	for name, l := range m.limiters {
		statuses[name] = l.Status()
	}
	return statuses
}

// Acquire admits n requests against the named limiter. An unregistered name
// is a setup bug, reported as an error rather than silently admitted.
func (m *Manager) Acquire(name string, n int) error {
	l, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("rate limiter %q not registered", name)
	}

	err := l.Acquire(n)
	if err != nil {
		m.logger.Debug("rate limit rejection",
			zap.String("name", name),
			zap.Int("tokens", n),
			zap.Error(err),
		)
	}
	return err
}

// WithQuota acquires n tokens and, if admitted, runs fn. Token bucket and
// sliding window limiters need no release step, so the scope's only job is
// to reject before entering when acquisition fails.
func (m *Manager) WithQuota(name string, n int, fn func() error) error {
	if err := m.Acquire(name, n); err != nil {
		return err
	}
	return fn()
}

package breaker

import (
	"sync"

	"go.uber.org/zap"
)

// Manager is a named registry of circuit breakers. Breakers are created once
// at startup and live for the process lifetime; all access goes through the
// manager so there is a single instance per name.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	logger   *zap.Logger
}

// NewManager creates an empty breaker registry.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// Create registers and returns a new breaker. Registering a name twice
// replaces the previous entry, counters included; callers are expected to
// register each name exactly once at startup.
func (m *Manager) Create(name string, config Config) *CircuitBreaker {
	cb := New(name, config, m.logger)

	m.mu.Lock()
	if _, exists := m.breakers[name]; exists {
		m.logger.Warn("replacing existing circuit breaker", zap.String("name", name))
	}
	m.breakers[name] = cb
	m.mu.Unlock()

	return cb
}

// Get returns the breaker registered under name.
func (m *Manager) Get(name string) (*CircuitBreaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cb, ok := m.breakers[name]
	return cb, ok
}

// Status returns a snapshot of every registered breaker, keyed by name.
func (m *Manager) Status() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]Status, len(m.breakers))
	for name, cb := range m.breakers {
		statuses[name] = cb.Status()
	}
	return statuses
}

// Reset forces the named breaker back to closed with all counters zeroed.
// It returns false when no breaker is registered under name. Reset takes the
// same per-breaker mutex as Do, so it is safe concurrently with protected
// calls.
func (m *Manager) Reset(name string) bool {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	cb.Reset()
	m.logger.Info("circuit breaker reset", zap.String("name", name))
	return true
}

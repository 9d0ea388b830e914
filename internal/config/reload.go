package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader watches the config file and reloads on changes. A reload that
// fails validation keeps the current config. Registered callbacks receive
// the new config after a successful swap; the typical callback re-applies
// the service definitions to the registry, replacing the named breakers and
// limiters.
type Reloader struct {
	mu        sync.RWMutex
	current   *Config
	path      string
	logger    *zap.Logger
	callbacks []func(*Config)
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewReloader creates a Reloader for the given config file path.
func NewReloader(path string, initial *Config, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reloader{
		current: initial,
		path:    path,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Current returns the active configuration (thread-safe).
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnReload registers a callback invoked with the new config after a
// successful reload.
func (r *Reloader) OnReload(fn func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Start begins watching the config file for changes. Must be called once
// after NewReloader.
func (r *Reloader) Start() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Error("failed to create file watcher", zap.Error(err))
		return
	}
	r.watcher = watcher

	if err := watcher.Add(r.path); err != nil {
		r.logger.Error("failed to watch config file", zap.String("path", r.path), zap.Error(err))
		watcher.Close()
		r.watcher = nil
		return
	}

	r.logger.Info("config file watcher started", zap.String("path", r.path))

	go r.watchLoop()
}

// Stop terminates the file watcher.
func (r *Reloader) Stop() {
	close(r.stopCh)
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// Reload loads the config from disk, validates it, and if valid swaps it in
// and notifies all registered callbacks. Returns true if the reload
// succeeded. Exported so tests and tools can trigger it directly.
func (r *Reloader) Reload() bool {
	r.logger.Info("reloading configuration", zap.String("path", r.path))

	newCfg, err := Load(r.path)
	if err != nil {
		r.logger.Error("config reload failed, keeping current",
			zap.String("path", r.path), zap.Error(err))
		return false
	}

	r.mu.Lock()
	old := r.current
	r.current = newCfg
	callbacks := make([]func(*Config), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	if len(old.Services) != len(newCfg.Services) {
		r.logger.Info("service count changed",
			zap.Int("old", len(old.Services)),
			zap.Int("new", len(newCfg.Services)),
		)
	}

	for _, cb := range callbacks {
		cb(newCfg)
	}

	r.logger.Info("configuration reloaded")
	return true
}

// watchLoop processes fsnotify events with debouncing. Editors often write
// multiple events on save.
func (r *Reloader) watchLoop() {
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, func() {
					r.Reload()
				})
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("file watcher error", zap.Error(err))
		case <-r.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

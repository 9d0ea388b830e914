package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/breakwater-io/breakwater/internal/breaker"
	"github.com/breakwater-io/breakwater/internal/config"
	"github.com/breakwater-io/breakwater/internal/logging"
	"github.com/breakwater-io/breakwater/internal/metrics"
	"github.com/breakwater-io/breakwater/internal/ratelimit"
	"github.com/breakwater-io/breakwater/internal/status"
	"github.com/breakwater-io/breakwater/pkg/guard"
)

var errDependencyDown = errors.New("dependency unavailable")

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Println("config error:", err)
			return
		}
		cfg = loaded
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Println("logger error:", err)
		return
	}
	defer logger.Sync() //nolint:errcheck

	var m *metrics.Metrics
	if cfg.Metrics.IsEnabled() {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	registry := guard.New(logger, m)
	if err := cfg.Apply(registry); err != nil {
		logger.Fatal("applying config", zap.Error(err))
	}

	// Hot reload replaces the named breakers/limiters on config change.
	if *configPath != "" {
		reloader := config.NewReloader(*configPath, cfg, logger)
		reloader.OnReload(func(newCfg *config.Config) {
			if err := newCfg.Apply(registry); err != nil {
				logger.Error("re-applying config", zap.Error(err))
			}
		})
		reloader.Start()
		defer reloader.Stop()
	}

	// Status and metrics server for operational dashboards.
	mux := http.NewServeMux()
	status.New(registry, logger).RegisterRoutes(mux)
	if m != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", cfg.Status.Addr))
		if err := http.ListenAndServe(cfg.Status.Addr, mux); err != nil {
			logger.Fatal("status server", zap.Error(err))
		}
	}()

	logger.Info("simulating traffic against a flaky dependency",
		zap.String("service", "upstream-api"),
		zap.String("status_url", "http://localhost"+cfg.Status.Addr+"/status/breakers"),
	)

	// Two requests per second, matching a modest client workload.
	pacer := rate.NewLimiter(rate.Limit(2), 1)

	for i := 1; ; i++ {
		if err := pacer.Wait(context.Background()); err != nil {
			return
		}

		err := registry.Call("upstream-api", func() error {
			return simulateCall(i)
		})

		switch {
		case breaker.IsOpen(err):
			logger.Warn("rejected fast, circuit open", zap.Int("call", i))
		case ratelimit.IsLimited(err):
			logger.Warn("rejected, quota exhausted", zap.Int("call", i), zap.Error(err))
		case err != nil:
			logger.Error("call failed", zap.Int("call", i), zap.Error(err))
		default:
			logger.Info("call succeeded", zap.Int("call", i))
		}
	}
}

// simulateCall fails often early on, recovers, then stays healthy, so the
// breaker visibly trips, probes, and closes again.
func simulateCall(n int) error {
	switch {
	case n <= 20 && rand.Float64() < 0.7:
		return errDependencyDown
	case n <= 40 && rand.Float64() < 0.2:
		return errDependencyDown
	default:
		return nil
	}
}

// defaultConfig guards one simulated dependency when no config file is given.
func defaultConfig() *config.Config {
	return &config.Config{
		Logging: config.LoggingConfig{Level: "info", Format: "console"},
		Metrics: config.MetricsConfig{Namespace: "breakwater"},
		Status:  config.StatusConfig{Enabled: true, Addr: ":8090"},
		Services: []config.ServiceConfig{
			{
				Name: "upstream-api",
				CircuitBreaker: &config.BreakerConfig{
					FailureThreshold: 5,
					Timeout:          10 * time.Second,
					RecoveryTimeout:  5 * time.Second,
				},
				RateLimit: &config.LimitConfig{
					RequestsPerHour: 7200,
					BurstLimit:      10,
					Algorithm:       ratelimit.TokenBucket,
				},
			},
		},
	}
}

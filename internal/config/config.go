// Package config provides YAML configuration loading with validation and
// environment variable substitution for the resilience layer. Each configured
// service binds one dependency name to a circuit breaker and/or rate limiter.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breakwater-io/breakwater/internal/breaker"
	"github.com/breakwater-io/breakwater/internal/ratelimit"
	"github.com/breakwater-io/breakwater/pkg/guard"
)

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics" json:"metrics"`
	Status   StatusConfig    `yaml:"status" json:"status"`
	Services []ServiceConfig `yaml:"services" json:"services"`
}

// LoggingConfig holds zap logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // "debug", "info", "warn", "error"; default: "info"
	Format string `yaml:"format" json:"format"` // "json" or "console"; default: "json"
}

// MetricsConfig holds Prometheus metrics settings.
// Enabled defaults to true; set to false to disable metrics.
type MetricsConfig struct {
	Enabled   *bool  `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// IsEnabled returns whether metrics are enabled (defaults to true).
func (m MetricsConfig) IsEnabled() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

// StatusConfig holds the operational status HTTP server settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"` // default: ":8090"
}

// ServiceConfig binds one external dependency to its protection primitives.
// Either section may be omitted; a service with neither is rejected.
type ServiceConfig struct {
	Name           string         `yaml:"name" json:"name"`
	CircuitBreaker *BreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker,omitempty"`
	RateLimit      *LimitConfig   `yaml:"rate_limit" json:"rate_limit,omitempty"`
}

// BreakerConfig holds per-service circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"` // default: 5
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`                     // default: 60s
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`   // default: 30s
}

// LimitConfig holds per-service rate limiter settings.
type LimitConfig struct {
	RequestsPerHour int                 `yaml:"requests_per_hour" json:"requests_per_hour"`
	BurstLimit      int                 `yaml:"burst_limit" json:"burst_limit"` // default: max(10, requests_per_hour/60)
	Algorithm       ratelimit.Algorithm `yaml:"algorithm" json:"algorithm"`     // default: token_bucket
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, sets defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "breakwater"
	}
	if cfg.Status.Addr == "" {
		cfg.Status.Addr = ":8090"
	}

	for i := range cfg.Services {
		svc := &cfg.Services[i]
		if cb := svc.CircuitBreaker; cb != nil {
			if cb.FailureThreshold == 0 {
				cb.FailureThreshold = 5
			}
			if cb.Timeout == 0 {
				cb.Timeout = 60 * time.Second
			}
			if cb.RecoveryTimeout == 0 {
				cb.RecoveryTimeout = 30 * time.Second
			}
		}
		if rl := svc.RateLimit; rl != nil {
			if rl.Algorithm == "" {
				rl.Algorithm = ratelimit.TokenBucket
			}
			if rl.BurstLimit == 0 {
				derived := rl.RequestsPerHour / 60
				if derived < 10 {
					derived = 10
				}
				rl.BurstLimit = derived
			}
		}
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(cfg *Config) error {
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", cfg.Logging.Format)
	}

	if len(cfg.Services) == 0 {
		return fmt.Errorf("at least one service must be configured")
	}

	seen := make(map[string]bool)
	for i, svc := range cfg.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d].name is required", i)
		}
		if seen[svc.Name] {
			return fmt.Errorf("duplicate service name: %s", svc.Name)
		}
		seen[svc.Name] = true

		if svc.CircuitBreaker == nil && svc.RateLimit == nil {
			return fmt.Errorf("services[%d] (%s): at least one of circuit_breaker or rate_limit is required", i, svc.Name)
		}

		if cb := svc.CircuitBreaker; cb != nil {
			if cb.FailureThreshold < 1 {
				return fmt.Errorf("services[%d].circuit_breaker.failure_threshold must be positive", i)
			}
			if cb.Timeout <= 0 {
				return fmt.Errorf("services[%d].circuit_breaker.timeout must be positive", i)
			}
			if cb.RecoveryTimeout <= 0 {
				return fmt.Errorf("services[%d].circuit_breaker.recovery_timeout must be positive", i)
			}
		}

		if rl := svc.RateLimit; rl != nil {
			if rl.RequestsPerHour <= 0 {
				return fmt.Errorf("services[%d].rate_limit.requests_per_hour must be positive", i)
			}
			if rl.BurstLimit < 0 {
				return fmt.Errorf("services[%d].rate_limit.burst_limit must be non-negative", i)
			}
			switch rl.Algorithm {
			case ratelimit.TokenBucket, ratelimit.SlidingWindow:
			default:
				return fmt.Errorf("services[%d].rate_limit.algorithm must be %q or %q, got %q",
					i, ratelimit.TokenBucket, ratelimit.SlidingWindow, rl.Algorithm)
			}
		}
	}

	return nil
}

// Apply registers every configured service's breaker and limiter with the
// registry. Applying a config a second time (hot reload) replaces the named
// entries, which resets their counters; this is the registry's documented
// overwrite semantics.
func (cfg *Config) Apply(reg *guard.Registry) error {
	for _, svc := range cfg.Services {
		if cb := svc.CircuitBreaker; cb != nil {
			reg.CreateBreaker(svc.Name, breaker.Config{
				FailureThreshold: cb.FailureThreshold,
				Timeout:          cb.Timeout,
				RecoveryTimeout:  cb.RecoveryTimeout,
			})
		}

		if rl := svc.RateLimit; rl != nil {
			_, err := reg.CreateLimiter(svc.Name, ratelimit.Config{
				RequestsPerHour: rl.RequestsPerHour,
				BurstLimit:      rl.BurstLimit,
			}, rl.Algorithm)
			if err != nil {
				return fmt.Errorf("service %s: %w", svc.Name, err)
			}
		}
	}

	return nil
}

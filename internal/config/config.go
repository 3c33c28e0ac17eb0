// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Throttle backends.
const (
	ThrottleBackendMemory = "memory"
	ThrottleBackendRedis  = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Credit policy
	InitialCredits  int `env:"INITIAL_CREDITS" envDefault:"10"`
	DefaultRecharge int `env:"DEFAULT_RECHARGE" envDefault:"10"`

	// Registration throttle
	ThrottleEnabled     bool          `env:"THROTTLE_ENABLED" envDefault:"true"`
	ThrottleMaxAttempts int           `env:"THROTTLE_MAX_ATTEMPTS" envDefault:"5"`
	ThrottleWindow      time.Duration `env:"THROTTLE_WINDOW" envDefault:"60m"`
	ThrottleBackend     string        `env:"THROTTLE_BACKEND" envDefault:"memory"`

	// Cache (Redis), only needed by the redis throttle backend
	RedisURL string `env:"REDIS_URL"`

	// Honor X-Forwarded-For and X-Real-IP for the client address.
	// Only enable behind a reverse proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Comma-separated list of allowed origins (e.g., "https://example.com,*.example.org")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// UsesRedis reports whether the throttle state lives in Redis.
func (c *Config) UsesRedis() bool {
	return c.ThrottleBackend == ThrottleBackendRedis
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate checks constraints the struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.ThrottleBackend {
	case ThrottleBackendMemory:
	case ThrottleBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when THROTTLE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("THROTTLE_BACKEND must be %q or %q, got %q",
			ThrottleBackendMemory, ThrottleBackendRedis, c.ThrottleBackend))
	}

	if c.ThrottleEnabled && c.ThrottleMaxAttempts < 1 {
		errs = append(errs, errors.New("THROTTLE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.ThrottleEnabled && c.ThrottleWindow <= 0 {
		errs = append(errs, errors.New("THROTTLE_WINDOW must be positive"))
	}
	if c.InitialCredits < 0 || c.DefaultRecharge < 0 {
		errs = append(errs, errors.New("INITIAL_CREDITS and DEFAULT_RECHARGE must not be negative"))
	}

	return errors.Join(errs...)
}

// Load parses the process environment and validates the result.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
// A nil map is treated as empty.
func LoadFrom(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

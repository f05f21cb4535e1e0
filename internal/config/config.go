package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// RateLimitConfig is the fixed-window policy applied to every client.
type RateLimitConfig struct {
	WindowMs        int64 `yaml:"window_ms"`
	MaxRequests     int64 `yaml:"max_requests"`
	SweepIntervalMs int64 `yaml:"sweep_interval_ms"`
}

// Window returns WindowMs as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// SweepInterval returns SweepIntervalMs as a duration.
func (r RateLimitConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalMs) * time.Millisecond
}

// CORSConfig controls cross-origin access. Origin is a comma-separated list;
// "*" allows any origin.
type CORSConfig struct {
	Origin      string `yaml:"origin"`
	Credentials bool   `yaml:"credentials"`
}

// Origins splits Origin into its entries.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.Origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// JWTConfig guards the admin endpoints. Without a Secret they are not served.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Config holds configuration loaded from an optional YAML file and
// environment variables. Environment wins.
type Config struct {
	Env                     string          `yaml:"env"`
	ListenAddr              string          `yaml:"listen_addr"`
	APIPrefix               string          `yaml:"api_prefix"`
	RedisAddr               string          `yaml:"redis_addr"`
	GracefulShutdownTimeout int             `yaml:"graceful_shutdown_timeout"`
	LogLevel                string          `yaml:"log_level"`
	MaxRequestSize          int64           `yaml:"max_request_size"`
	TrustProxy              bool            `yaml:"trust_proxy"`
	PurgeAfter              time.Duration   `yaml:"purge_after"`
	RateLimit               RateLimitConfig `yaml:"rate_limit"`
	CORS                    CORSConfig      `yaml:"cors"`
	JWT                     JWTConfig       `yaml:"jwt"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env:                     EnvDevelopment,
		ListenAddr:              ":8080",
		APIPrefix:               "/api/v1",
		GracefulShutdownTimeout: 15,
		LogLevel:                "info",
		MaxRequestSize:          10 * 1024 * 1024,
		RateLimit: RateLimitConfig{
			WindowMs:        15 * 60 * 1000,
			MaxRequests:     100,
			SweepIntervalMs: 60 * 1000,
		},
		CORS: CORSConfig{Origin: "*", Credentials: true},
	}
}

// Load reads path (if non-empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("APP_ENV", &c.Env)
	str("LISTEN_ADDR", &c.ListenAddr)
	str("API_PREFIX", &c.APIPrefix)
	str("REDIS_ADDR", &c.RedisAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("JWT_SECRET", &c.JWT.Secret)
	str("JWT_ISS", &c.JWT.Issuer)
	str("CORS_ORIGIN", &c.CORS.Origin)

	ints := []struct {
		key string
		dst *int64
	}{
		{"MAX_REQUEST_SIZE", &c.MaxRequestSize},
		{"RATE_LIMIT_WINDOW_MS", &c.RateLimit.WindowMs},
		{"RATE_LIMIT_MAX", &c.RateLimit.MaxRequests},
		{"RATE_LIMIT_SWEEP_MS", &c.RateLimit.SweepIntervalMs},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", e.key)
		}
		*e.dst = n
	}

	if v, ok := lookup("GRACEFUL_SHUTDOWN_TIMEOUT"); ok && v != "" {
		t, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "invalid GRACEFUL_SHUTDOWN_TIMEOUT")
		}
		c.GracefulShutdownTimeout = t
	}
	if v, ok := lookup("TRUST_PROXY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "invalid TRUST_PROXY")
		}
		c.TrustProxy = b
	}
	if v, ok := lookup("CORS_CREDENTIALS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "invalid CORS_CREDENTIALS")
		}
		c.CORS.Credentials = b
	}
	if v, ok := lookup("PURGE_AFTER"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "invalid PURGE_AFTER")
		}
		c.PurgeAfter = d
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	if c.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("rate_limit.window_ms must be positive, got %d", c.RateLimit.WindowMs)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.SweepIntervalMs < 0 {
		return fmt.Errorf("rate_limit.sweep_interval_ms must not be negative, got %d", c.RateLimit.SweepIntervalMs)
	}
	if c.MaxRequestSize <= 0 {
		return fmt.Errorf("max_request_size must be positive, got %d", c.MaxRequestSize)
	}
	if c.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %d", c.GracefulShutdownTimeout)
	}
	if c.PurgeAfter < 0 {
		return fmt.Errorf("purge_after must not be negative, got %s", c.PurgeAfter)
	}
	if len(c.CORS.Origins()) == 0 {
		return fmt.Errorf("cors.origin must list at least one origin")
	}
	if c.APIPrefix == "" || c.APIPrefix[0] != '/' {
		return fmt.Errorf("api_prefix must start with '/', got %q", c.APIPrefix)
	}
	return nil
}

// IsProduction reports whether error details must be hidden.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

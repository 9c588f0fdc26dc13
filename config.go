package iconic

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file-based construction surface for a Client. Every
// optional value has a documented default; only the credentials and the
// instance domain are required.
type Config struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	InstanceDomain string `yaml:"instance_domain"`

	// SigningKey is the key material for signed endpoints. Empty disables
	// signing; calls flagged as requiring it will fail.
	SigningKey string `yaml:"signing_key"`

	RequestTimeout time.Duration   `yaml:"request_timeout"` // default: 30s
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig defines the shared leaky bucket. The platform default is
// 25 requests per second.
type RateLimitConfig struct {
	Capacity  float64 `yaml:"capacity"`
	PerSecond float64 `yaml:"per_second"`
}

// RetryConfig defines the retry/backoff policy for idempotent-safe calls.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`     // default: 4
	InitialInterval time.Duration `yaml:"initial_interval"` // default: 500ms
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"` // default: 2m
}

// LoadConfig reads and parses a YAML config file, performing environment
// variable substitution and validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path supplied by the caller
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultTimeout
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = DefaultRateCapacity
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = DefaultRateRefill
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaultMaxAttempts
	}
	if c.Retry.InitialInterval == 0 {
		c.Retry.InitialInterval = defaultBackoffBase
	}
	if c.Retry.MaxElapsedTime == 0 {
		c.Retry.MaxElapsedTime = defaultMaxElapsed
	}
}

func (c *Config) validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	if c.ClientSecret == "" {
		return errors.New("client_secret is required")
	}
	if c.InstanceDomain == "" {
		return errors.New("instance_domain is required")
	}
	if c.RateLimit.Capacity < 0 || c.RateLimit.PerSecond < 0 {
		return errors.New("rate_limit values must be positive")
	}
	return nil
}

// NewFromConfig creates a Client from a loaded Config. Options are applied
// after the config and may override it.
func NewFromConfig(cfg *Config, opts ...Option) *Client {
	cfg.applyDefaults()
	base := []Option{
		WithTimeout(cfg.RequestTimeout),
		WithRateLimit(cfg.RateLimit.Capacity, cfg.RateLimit.PerSecond),
		WithMaxAttempts(cfg.Retry.MaxAttempts),
		WithRetryPolicy(cfg.Retry.InitialInterval, cfg.Retry.MaxElapsedTime),
	}
	if cfg.SigningKey != "" {
		base = append(base, WithSigningKey([]byte(cfg.SigningKey)))
	}
	return New(cfg.ClientID, cfg.ClientSecret, cfg.InstanceDomain, append(base, opts...)...)
}

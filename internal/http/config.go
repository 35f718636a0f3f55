package http

import (
	"errors"
	"fmt"
	"time"
)

// Config holds HTTP server configuration.
type Config struct {
	Host            string        `koanf:"host" yaml:"host"`
	Port            int           `koanf:"port" yaml:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`

	// RateLimit is the sustained requests per second allowed per client IP;
	// 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `koanf:"rate_burst" yaml:"rate_burst"`

	// MaxBodySize caps request bodies, e.g. "16M".
	MaxBodySize string `koanf:"max_body_size" yaml:"max_body_size"`
}

// DefaultConfig returns the stock server configuration. The server listens
// on loopback only.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            9191,
		ShutdownTimeout: 10 * time.Second,
		RateLimit:       10,
		RateBurst:       20,
		MaxBodySize:     "16M",
	}
}

// Validate checks the server configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit cannot be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, errors.New("rate_burst must be at least 1 when rate_limit is set"))
	}
	if c.MaxBodySize == "" {
		errs = append(errs, errors.New("max_body_size is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

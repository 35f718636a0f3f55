// Package config loads the patternd configuration.
//
// Configuration is layered: built-in defaults, then the YAML file, then
// PATTERND_* environment variables. A missing file, or a file missing keys,
// is completed with defaults and written back so the effective settings are
// visible and editable.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/extraction"
	httpserver "github.com/fyrsmithlabs/patternd/internal/http"
	"github.com/fyrsmithlabs/patternd/internal/learning"
	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/secrets"
	"github.com/fyrsmithlabs/patternd/internal/store"
	"github.com/fyrsmithlabs/patternd/internal/telemetry"
)

// Errors returned by Load and Validate.
var (
	// ErrInvalidConfig is returned when the configuration cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPersist is returned alongside a usable Config when the completed
	// file could not be written back.
	ErrPersist = errors.New("failed to persist configuration")
)

const (
	appDir         = "patternd"
	configFileName = "config.yaml"
	dbFileName     = "patterns.db"
)

// Config holds the complete patternd configuration.
type Config struct {
	Store      store.Config      `koanf:"store" yaml:"store"`
	Log        logging.Config    `koanf:"log" yaml:"log"`
	Learning   learning.Config   `koanf:"learning" yaml:"learning"`
	Extraction extraction.Config `koanf:"extraction" yaml:"extraction"`
	Secrets    secrets.Config    `koanf:"secrets" yaml:"secrets"`
	Telemetry  telemetry.Config  `koanf:"telemetry" yaml:"telemetry"`
	HTTP       httpserver.Config `koanf:"http" yaml:"http"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: store.Config{
			Backend: store.BackendSQLite,
			Path:    filepath.Join("~", ".config", appDir, dbFileName),
		},
		Log:        *logging.NewDefaultConfig(),
		Learning:   learning.DefaultConfig(),
		Extraction: extraction.DefaultConfig(),
		Secrets:    secrets.DefaultConfig(),
		Telemetry:  telemetry.DefaultConfig(),
		HTTP:       httpserver.DefaultConfig(),
	}
}

// Validate checks every section. All problems are reported, each wrapped
// with its section name.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if err := c.Learning.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("learning: %w", err))
	}
	if err := c.Extraction.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("extraction: %w", err))
	}
	if err := c.Secrets.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("secrets: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Dir returns the per-user configuration directory (~/.config/patternd).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDir), nil
}

// DefaultPath returns the default configuration file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

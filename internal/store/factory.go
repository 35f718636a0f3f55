package store

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend names.
const (
	BackendSQLite = backendSQLite
	BackendMemory = backendMemory
)

// Config selects and configures the storage backend.
type Config struct {
	// Backend is "sqlite" or "memory".
	Backend string `koanf:"backend" yaml:"backend"`

	// Path is the SQLite database file.
	Path string `koanf:"path" yaml:"path"`
}

// Validate checks the backend selection.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", BackendSQLite)
		}
		return nil
	default:
		return fmt.Errorf("unknown store backend %q (supported: %s, %s)", c.Backend, BackendSQLite, BackendMemory)
	}
}

// Open creates the Store selected by cfg.
func Open(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		logger.Info("using in-memory pattern store")
		return NewMemoryStore(), nil
	default:
		logger.Info("using sqlite pattern store", zap.String("path", cfg.Path))
		s, err := OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		return s, nil
	}
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override. Nested keys are
	// separated by a double underscore:
	//
	//	PATTERND_LEARNING__MIN_SIMILARITY_THRESHOLD -> learning.min_similarity_threshold
	EnvPrefix = "PATTERND_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load reads the configuration at path, or DefaultPath when path is empty.
//
// Precedence (highest to lowest):
//  1. Environment variables (PATTERND_STORE__PATH, PATTERND_LOG__LEVEL, ...)
//  2. YAML config file
//  3. Built-in defaults
//
// The file must live in ~/.config/patternd/ or /etc/patternd/, be at most
// 1MB and have 0600 or 0400 permissions. When the file is missing or lacks
// keys, the defaults-plus-file document (without environment overrides) is
// written back with 0600 permissions. A write-back failure returns the
// loaded Config together with an error wrapping ErrPersist.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("%w: config path validation failed: %w", ErrInvalidConfig, err)
	}

	k := koanf.New(".")
	defaults, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	content, exists, err := readConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	persist := !exists
	if exists {
		fileK := koanf.New(".")
		if err := fileK.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file %s: %w", ErrInvalidConfig, path, err)
		}
		for _, key := range k.Keys() {
			if !fileK.Exists(key) {
				persist = true
				break
			}
		}
		if err := k.Merge(fileK); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	var persistErr error
	if persist {
		var effective Config
		if err := k.Unmarshal("", &effective); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal config: %w", ErrInvalidConfig, err)
		}
		if err := writeConfigFile(path, &effective); err != nil {
			persistErr = fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", ErrInvalidConfig, err)
	}
	if cfg.Store.Path, err = ExpandHome(cfg.Store.Path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, persistErr
}

// envKey maps PATTERND_LEARNING__MIN_SIMILARITY_THRESHOLD to
// learning.min_similarity_threshold.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// readConfigFile returns the file content, or exists=false when there is no
// file at path.
func readConfigFile(path string) (content []byte, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate the open descriptor to avoid a TOCTOU race.
	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, false, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err = io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, false, fmt.Errorf("config file too large (max %d bytes)", maxConfigFileSize)
	}
	return content, true, nil
}

// writeConfigFile writes cfg as YAML with 0600 permissions, creating the
// directory with 0700 when needed.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// validateConfigPath checks that path is in an allowed directory. It runs
// even when the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	dir, err := Dir()
	if err != nil {
		return err
	}
	allowedDirs := []string{dir, filepath.Join("/etc", appDir)}
	if resolvedDir, err := filepath.EvalSymlinks(dir); err == nil {
		allowedDirs = append(allowedDirs, resolvedDir)
	}

	for _, d := range allowedDirs {
		if strings.HasPrefix(resolvedPath, d+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/%s/ or /etc/%s/", appDir, appDir)
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	// Permission bits are not meaningful on Windows.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// EnsureConfigDir creates ~/.config/patternd with 0700 permissions and
// returns its path.
func EnsureConfigDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, filepath.Join("~", ".config", "patternd", "patterns.db"), cfg.Store.Path)
	assert.Equal(t, 0.7, cfg.Learning.MinSimilarityThreshold)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate_ReportsEverySection(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "postgres"
	cfg.Learning.MinSimilarityThreshold = 2
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "store:")
	assert.Contains(t, err.Error(), "learning:")
	assert.Contains(t, err.Error(), "log:")
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tilde only", "~", home},
		{"tilde prefix", "~/data/p.db", filepath.Join(home, "data", "p.db")},
		{"absolute", "/var/lib/p.db", "/var/lib/p.db"},
		{"relative", "p.db", "p.db"},
		{"tilde user form untouched", "~bob/p.db", "~bob/p.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandHome(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "patternd", "config.yaml"), p)
}

func TestValidate_Telemetry(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "telemetry:")
}

func TestValidate_HTTP(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "http: port")
}

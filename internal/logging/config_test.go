package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.Stderr)
	assert.False(t, cfg.Output.OTEL)
	assert.True(t, cfg.Sampling.Enabled)
	assert.Equal(t, time.Second, cfg.Sampling.Tick)
	assert.Equal(t, "patternd", cfg.Fields["service"])
	assert.True(t, cfg.Redaction.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"trace level", func(c *Config) { c.Level = "trace" }, ""},
		{"unknown level", func(c *Config) { c.Level = "loud" }, "invalid level"},
		{"unknown stacktrace level", func(c *Config) { c.Stacktrace = "never" }, "invalid stacktrace level"},
		{"empty stacktrace disables", func(c *Config) { c.Stacktrace = "" }, ""},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format must be"},
		{"no outputs", func(c *Config) { c.Output = OutputConfig{} }, "at least one output"},
		{"otel only", func(c *Config) { c.Output = OutputConfig{OTEL: true} }, ""},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, "sampling tick"},
		{"zero tick without sampling", func(c *Config) { c.Sampling = SamplingConfig{} }, ""},
		{"negative sampling", func(c *Config) { c.Sampling.Initial = -1 }, "sampling counts"},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"[unclosed"} }, "invalid redaction pattern"},
		{"long pattern", func(c *Config) { c.Redaction.Patterns = []string{strings.Repeat("a", 201)} }, "too long"},
		{"bad pattern ignored when disabled", func(c *Config) {
			c.Redaction.Enabled = false
			c.Redaction.Patterns = []string{"[unclosed"}
		}, ""},
		{"empty field key", func(c *Config) { c.Fields = map[string]string{"": "x"} }, "field key cannot be empty"},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"env": ""} }, "empty value"},
		{"nil fields", func(c *Config) { c.Fields = nil }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

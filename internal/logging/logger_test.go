package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func jsonConfig(level string) *Config {
	cfg := NewDefaultConfig()
	cfg.Level = level
	cfg.Format = "json"
	cfg.Sampling.Enabled = false
	return cfg
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(jsonConfig("info"), nil, WithWriter(&buf))
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())

	ctx := WithSessionID(context.Background(), "sess-42")
	ctx = WithCommand(ctx, "learn")
	logger.Info(ctx, "learned from session", zap.Int("inserted", 3))
	logger.Debug(ctx, "filtered out")
	require.NoError(t, logger.Sync())

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "learned from session", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "sess-42", lines[0]["session.id"])
	assert.Equal(t, "learn", lines[0]["command"])
	assert.Equal(t, "patternd", lines[0]["service"])
	assert.EqualValues(t, 3, lines[0]["inserted"])
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)

	cfg = NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}
	_, err = NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "at least one output")
}

func TestNewLogger_TraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(jsonConfig("trace"), nil, WithWriter(&buf))
	require.NoError(t, err)

	logger.Trace(context.Background(), "similarity scored", zap.Float64("similarity", 0.82))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
}

func TestNewLogger_RedactsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(jsonConfig("info"), nil, WithWriter(&buf))
	require.NoError(t, err)

	logger.Info(context.Background(), "connecting",
		zap.String("password", "hunter2"),
		zap.String("header", "Bearer abc.def.ghi"),
		zap.String("db", "patterns.db"),
		RedactedString("dsn", "postgres://u:p@host"))
	logger.With(zap.String("token", "t0k3n")).Info(context.Background(), "child")

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.NotContains(t, out, "t0k3n")
	assert.NotContains(t, out, "u:p@host")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "[REDACTED]", lines[0]["password"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["header"])
	assert.Equal(t, "patterns.db", lines[0]["db"])
	assert.Equal(t, "[REDACTED:19]", lines[0]["dsn"])
	assert.Equal(t, "[REDACTED]", lines[1]["token"])
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}
	ctx := WithPatternID(context.Background(), "3f2c1e9a-0000-4000-8000-000000000001")

	logger.Trace(ctx, "trace message")
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	logs := observed.All()
	require.Len(t, logs, 5)
	levels := []zapcore.Level{TraceLevel, zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, entry := range logs {
		assert.Equal(t, levels[i], entry.Level)
		assert.Equal(t, "3f2c1e9a-0000-4000-8000-000000000001", entry.ContextMap()["pattern.id"])
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	parent := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	child := parent.With(zap.String("store", "sqlite")).Named("learning")
	child.Info(context.Background(), "child")
	parent.Info(context.Background(), "parent")

	logs := observed.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "learning", logs[0].LoggerName)
	assert.Equal(t, "sqlite", logs[0].ContextMap()["store"])
	assert.NotContains(t, logs[1].ContextMap(), "store")
	assert.False(t, parent.Enabled(zapcore.DebugLevel))
	assert.True(t, parent.Enabled(zapcore.WarnLevel))
}

func TestSampling_ErrorsNeverDropped(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       time.Minute,
		Initial:    5,
		Thereafter: 0,
	})
	logger := &Logger{zap: zap.New(sampled), config: NewDefaultConfig()}

	for i := 0; i < 50; i++ {
		logger.Info(context.Background(), "merged candidate")
		logger.Error(context.Background(), "batch rolled back")
	}

	assert.Equal(t, 5, observed.FilterMessage("merged candidate").Len())
	assert.Equal(t, 50, observed.FilterMessage("batch rolled back").Len())
}

func TestSampling_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{}))
}

func TestLevelFilterCore(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := &levelFilterCore{Core: core, minLevel: zapcore.InfoLevel, hasMin: true}

	assert.False(t, filtered.Enabled(zapcore.DebugLevel))
	assert.True(t, filtered.Enabled(zapcore.InfoLevel))

	child := filtered.With([]zapcore.Field{zap.String("k", "v")})
	zap.New(child).Debug("dropped")
	zap.New(child).Info("kept")
	require.Equal(t, 1, observed.Len())
	assert.Equal(t, "v", observed.All()[0].ContextMap()["k"])
}

func TestNewDualCore_NoOutputs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	_, err := newDualCore(cfg, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "at least one output")
}

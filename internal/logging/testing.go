package logging

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry at trace level and above so tests can
// assert on what the engine, pipeline and server logged.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger with the default config.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns every recorded entry.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message equals msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Count returns how many entries were logged with message msg.
func (t *TestLogger) Count(msg string) int {
	return t.observed.FilterMessage(msg).Len()
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged fails tb unless an entry at level has a message containing msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if len(t.matching(level, msgContains)) == 0 {
		tb.Errorf("no %v entry containing %q in %s", level, msgContains, t.summary())
	}
}

// AssertNotLogged fails tb if an entry at level has a message containing msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if n := len(t.matching(level, msgContains)); n > 0 {
		tb.Errorf("%d unexpected %v entries containing %q", n, level, msgContains)
	}
}

// AssertField fails tb unless some entry with message msg carries key with
// a value that prints like want. Numeric widths are ignored, so int 3 matches
// a zap.Int64 field.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		if v, ok := entry.ContextMap()[key]; ok && fmt.Sprint(v) == fmt.Sprint(want) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v in %s", msg, key, want, t.summary())
}

// AssertSessionCorrelated fails tb unless every entry with message msg
// carries a session id, from the logging context or an explicit field.
func (t *TestLogger) AssertSessionCorrelated(tb testing.TB, msg string) {
	tb.Helper()
	entries := t.observed.FilterMessage(msg).All()
	if len(entries) == 0 {
		tb.Errorf("no %q entry in %s", msg, t.summary())
		return
	}
	for _, entry := range entries {
		fields := entry.ContextMap()
		if fields["session.id"] == nil && fields["session_id"] == nil {
			tb.Errorf("%q entry has no session id: %v", msg, fields)
		}
	}
}

var (
	sensitiveKeys = []string{"password", "secret", "token", "api_key", "authorization", "credential", "private_key"}

	// Unredacted assignments like API_TOKEN=abc123 or "Bearer abc123".
	leakPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b[a-z_]*(token|secret|password|api_?key)\s*[=:]\s*[^\s\[]\S*`),
		regexp.MustCompile(`(?i)bearer\s+[^\s\[]\S*`),
	}
)

// AssertNoSecrets fails tb if a message or string field looks like an
// unredacted credential. Session content reaches logs only after scrubbing,
// so any hit here means a scrubber bypass.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if leaks(entry.Message) {
			tb.Errorf("credential in message %q", entry.Message)
		}
		for _, field := range entry.Context {
			if field.Type != zapcore.StringType || field.String == "" {
				continue
			}
			if sensitiveKey(field.Key) && !strings.Contains(field.String, "[REDACTED]") {
				tb.Errorf("field %q not redacted: %q", field.Key, field.String)
			}
			if leaks(field.String) {
				tb.Errorf("credential in field %q: %q", field.Key, field.String)
			}
		}
	}
}

func (t *TestLogger) matching(level zapcore.Level, msgContains string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			out = append(out, entry)
		}
	}
	return out
}

func (t *TestLogger) summary() string {
	var b strings.Builder
	b.WriteString("[")
	for i, entry := range t.observed.All() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v %q", entry.Level, entry.Message)
	}
	b.WriteString("]")
	return b.String()
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func leaks(s string) bool {
	for _, re := range leakPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

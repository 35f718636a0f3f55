package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}
	if patternID := PatternIDFromContext(ctx); patternID != "" {
		fields = append(fields, zap.String("pattern.id", patternID))
	}
	if command := CommandFromContext(ctx); command != "" {
		fields = append(fields, zap.String("command", command))
	}

	return fields
}

type sessionCtxKey struct{}
type patternCtxKey struct{}
type commandCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// validID reports whether id is safe to attach to log entries.
func validID(id string) bool {
	return id != "" &&
		utf8.ValidString(id) &&
		len(id) <= maxIDLen &&
		idPattern.MatchString(id)
}

// SessionIDFromContext extracts session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSessionID adds a session ID to context. Session IDs come from input
// files, so an invalid ID is dropped rather than attached.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if !validID(sessionID) {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// PatternIDFromContext extracts pattern ID from context.
func PatternIDFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(patternCtxKey{}).(string); ok {
		return p
	}
	return ""
}

// WithPatternID adds a pattern ID to context. Invalid IDs are dropped.
func WithPatternID(ctx context.Context, patternID string) context.Context {
	if !validID(patternID) {
		return ctx
	}
	return context.WithValue(ctx, patternCtxKey{}, patternID)
}

// CommandFromContext extracts the CLI command name from context.
func CommandFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(commandCtxKey{}).(string); ok {
		return c
	}
	return ""
}

// WithCommand adds the running CLI command name to context.
func WithCommand(ctx context.Context, command string) context.Context {
	if command == "" {
		return ctx
	}
	return context.WithValue(ctx, commandCtxKey{}, command)
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}

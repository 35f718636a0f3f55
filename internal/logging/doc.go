// Package logging provides the structured logger used by patternd.
//
// The logger wraps Zap with:
//   - a Trace level below Debug
//   - console (stderr) output and an optional OpenTelemetry bridge
//   - correlation fields taken from the context (trace, session, pattern, command)
//   - field-name and value-pattern redaction in the encoder
//   - sampling below error level
//
// Create a logger from config:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, rec.SessionID)
//	logger.Info(ctx, "learned from session", zap.Int("inserted", n))
//
// Services take a *zap.Logger; pass logger.Underlying().
//
// Use TestLogger in tests:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "stored", zap.String("pattern_id", id))
//	tl.AssertLogged(t, zapcore.InfoLevel, "stored")
//	tl.AssertNoSecrets(t)
package logging

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/extraction"
	"github.com/fyrsmithlabs/patternd/internal/learning"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/secrets"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

const sessionJSON = `{
  "session_id": "sess-http-1",
  "conversation": [
    {"role": "user", "content": "Create a new authentication class"},
    {"role": "assistant", "content": "Next, write unit tests"},
    {"role": "user", "content": "Finally, deploy to staging"}
  ],
  "decisions": [
    {"decision": "Use PostgreSQL", "rationale": "JSON support", "alternatives": ["MySQL", "SQLite"]}
  ]
}`

func newTestEngine(t *testing.T) *learning.Engine {
	t.Helper()
	scrubber, err := secrets.New(secrets.DefaultConfig())
	require.NoError(t, err)
	pipeline, err := extraction.NewPipeline(extraction.DefaultConfig(), scrubber, zap.NewNop())
	require.NoError(t, err)
	engine, err := learning.NewEngine(store.NewMemoryStore(), learning.DefaultConfig(), zap.NewNop(),
		learning.WithPipeline(pipeline))
	require.NoError(t, err)
	return engine
}

func setupTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	server, err := NewServer(newTestEngine(t), zap.NewNop(), cfg)
	require.NoError(t, err)
	return server
}

// do sends a request and returns the recorder.
func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("creates server with valid config", func(t *testing.T) {
		server, err := NewServer(engine, zap.NewNop(), DefaultConfig())
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, "localhost:9191", server.config.Addr())
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(engine, nil, DefaultConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when engine is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), DefaultConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine cannot be nil")
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Port = 0
		_, err := NewServer(engine, zap.NewNop(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
	})
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Host = ""
	cfg.RateBurst = 0
	cfg.ShutdownTimeout = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
	assert.Contains(t, err.Error(), "rate_burst")
	assert.Contains(t, err.Error(), "shutdown_timeout")

	cfg = DefaultConfig()
	cfg.RateLimit = 0
	cfg.RateBurst = 0
	assert.NoError(t, cfg.Validate())
}

func TestHandleHealth(t *testing.T) {
	rec := do(t, setupTestServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleMetrics(t *testing.T) {
	rec := do(t, setupTestServer(t), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLearnRecommendUsageDeprecate(t *testing.T) {
	s := setupTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/learn", sessionJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	learned := decode[LearnResponse](t, rec)
	assert.Equal(t, "sess-http-1", learned.SessionID)
	require.Positive(t, learned.Inserted)

	rec = do(t, s, http.MethodPost, "/api/v1/learn", sessionJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[LearnResponse](t, rec)
	assert.Zero(t, again.Inserted)
	assert.Equal(t, again.Candidates, again.Merged)

	rec = do(t, s, http.MethodPost, "/api/v1/recommend",
		`{"context": "PostgreSQL JSON support", "pattern_type": "decision", "min_quality": 0.01}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recs := decode[[]learning.Recommendation](t, rec)
	require.Len(t, recs, 1)
	id := recs[0].Pattern.ID

	rec = do(t, s, http.MethodPost, "/api/v1/patterns/"+id+"/usage", `{"success": true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	used := decode[pattern.Pattern](t, rec)
	assert.Equal(t, 1, used.ReuseCount)
	assert.Equal(t, 1.0, used.SuccessRate)

	rec = do(t, s, http.MethodGet, "/api/v1/patterns/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[pattern.Pattern](t, rec).ID)

	rec = do(t, s, http.MethodPost, "/api/v1/patterns/"+id+"/deprecate", `{"reason": "superseded"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[pattern.Pattern](t, rec).Deprecated)

	rec = do(t, s, http.MethodGet, "/api/v1/patterns/"+id+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]pattern.HistoryEntry](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, pattern.EventMerged, history[0].Event)
	assert.Equal(t, pattern.EventDeprecated, history[1].Event)

	rec = do(t, s, http.MethodPost, "/api/v1/recommend",
		`{"context": "PostgreSQL JSON support", "pattern_type": "decision", "min_quality": 0.01}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[[]store.TypeStats](t, rec)
	assert.NotEmpty(t, stats)
}

func TestHandleSimilar(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/learn", sessionJSON).Code)

	rec := do(t, s, http.MethodPost, "/api/v1/similar", `{"text": "Use PostgreSQL", "pattern_type": "decision"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	matches := decode[[]learning.Match](t, rec)
	require.NotEmpty(t, matches)
	assert.Greater(t, matches[0].Similarity, 0.0)
}

func TestRequestErrors(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"learn invalid json", http.MethodPost, "/api/v1/learn", `{`, http.StatusBadRequest},
		{"learn missing session id", http.MethodPost, "/api/v1/learn", `{"conversation": []}`, http.StatusBadRequest},
		{"recommend missing context", http.MethodPost, "/api/v1/recommend", `{}`, http.StatusBadRequest},
		{"recommend bad type", http.MethodPost, "/api/v1/recommend", `{"context": "x", "pattern_type": "bogus"}`, http.StatusBadRequest},
		{"recommend quality out of range", http.MethodPost, "/api/v1/recommend", `{"context": "x", "min_quality": 1.5}`, http.StatusBadRequest},
		{"similar missing text", http.MethodPost, "/api/v1/similar", `{}`, http.StatusBadRequest},
		{"usage missing outcome", http.MethodPost, "/api/v1/patterns/abc/usage", `{}`, http.StatusBadRequest},
		{"usage unknown pattern", http.MethodPost, "/api/v1/patterns/missing/usage", `{"success": false}`, http.StatusNotFound},
		{"deprecate unknown pattern", http.MethodPost, "/api/v1/patterns/missing/deprecate", `{"reason": "x"}`, http.StatusNotFound},
		{"history unknown pattern", http.MethodGet, "/api/v1/patterns/missing/history", "", http.StatusNotFound},
		{"get unknown pattern", http.MethodGet, "/api/v1/patterns/missing", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestEngineError(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		err  error
		want int
	}{
		{pattern.ErrNotFound, http.StatusNotFound},
		{pattern.ErrInvalidType, http.StatusBadRequest},
		{extraction.ErrAllExtractorsFailed, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusServiceUnavailable},
		{learning.ErrStorage, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		var he *echo.HTTPError
		require.True(t, errors.As(s.engineError(tt.err), &he))
		assert.Equal(t, tt.want, he.Code, tt.err.Error())
	}
}

func TestRateLimit(t *testing.T) {
	s := setupTestServer(t, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 2
	})

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	r := newRateLimiter(1, 1)
	r.now = func() time.Time { return now }

	first := r.get("10.0.0.1")
	assert.Same(t, first, r.get("10.0.0.1"))

	now = now.Add(2 * limiterTTL)
	assert.NotSame(t, first, r.get("10.0.0.1"))
}

func TestBodyLimit(t *testing.T) {
	s := setupTestServer(t, func(c *Config) { c.MaxBodySize = "1K" })

	big := `{"context": "` + strings.Repeat("x", 2048) + `"}`
	rec := do(t, s, http.MethodPost, "/api/v1/recommend", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStartShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 39191
	cfg.ShutdownTimeout = time.Second
	srv, err := NewServer(newTestEngine(t), zap.NewNop(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:39191/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/extraction"
	"github.com/fyrsmithlabs/patternd/internal/learning"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// LearnResponse is the response body for POST /api/v1/learn.
type LearnResponse struct {
	SessionID  string            `json:"session_id"`
	Candidates int               `json:"candidates"`
	Inserted   int               `json:"inserted"`
	Merged     int               `json:"merged"`
	Redactions int               `json:"redactions"`
	Failures   []FailureResponse `json:"failures,omitempty"`
}

// FailureResponse reports one failed extractor.
type FailureResponse struct {
	Extractor string `json:"extractor"`
	Error     string `json:"error"`
}

// RecommendRequest is the request body for POST /api/v1/recommend.
type RecommendRequest struct {
	Context    string   `json:"context"`
	Type       string   `json:"pattern_type,omitempty"`
	MinQuality *float64 `json:"min_quality,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// SimilarRequest is the request body for POST /api/v1/similar.
type SimilarRequest struct {
	Text  string `json:"text"`
	Type  string `json:"pattern_type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// UsageRequest is the request body for POST /api/v1/patterns/:id/usage.
type UsageRequest struct {
	Success *bool `json:"success"`
}

// DeprecateRequest is the request body for POST /api/v1/patterns/:id/deprecate.
type DeprecateRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleLearn(c echo.Context) error {
	rec, err := session.Decode(c.Request().Body)
	if err != nil {
		s.logger.Warn("invalid learn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	res, err := s.engine.Learn(c.Request().Context(), rec)
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}

	resp := LearnResponse{
		SessionID:  res.SessionID,
		Candidates: res.Candidates,
		Inserted:   res.Inserted,
		Merged:     res.Merged,
		Redactions: res.Redactions,
	}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{Extractor: f.Extractor, Error: f.Err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRecommend(c echo.Context) error {
	var req RecommendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Context == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "context field is required")
	}
	if q := req.MinQuality; q != nil && (*q < 0 || *q > 1) {
		return echo.NewHTTPError(http.StatusBadRequest, "min_quality must be between 0 and 1")
	}
	t, err := parseOptionalType(req.Type)
	if err != nil {
		return err
	}

	s.mu.Lock()
	recs, err := s.engine.Recommend(c.Request().Context(), learning.Request{
		Context:    req.Context,
		Type:       t,
		MinQuality: req.MinQuality,
		Limit:      req.Limit,
	})
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}
	if recs == nil {
		recs = []learning.Recommendation{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) handleSimilar(c echo.Context) error {
	var req SimilarRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}
	t, err := parseOptionalType(req.Type)
	if err != nil {
		return err
	}

	s.mu.Lock()
	matches, err := s.engine.FindSimilar(c.Request().Context(), req.Text, t, req.Limit)
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}
	if matches == nil {
		matches = []learning.Match{}
	}
	return c.JSON(http.StatusOK, matches)
}

func (s *Server) handleStats(c echo.Context) error {
	s.mu.Lock()
	stats, err := s.engine.Stats(c.Request().Context())
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGet(c echo.Context) error {
	s.mu.Lock()
	p, err := s.engine.Get(c.Request().Context(), c.Param("id"))
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleHistory(c echo.Context) error {
	s.mu.Lock()
	h, err := s.engine.History(c.Request().Context(), c.Param("id"))
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}
	if h == nil {
		h = []pattern.HistoryEntry{}
	}
	return c.JSON(http.StatusOK, h)
}

func (s *Server) handleUsage(c echo.Context) error {
	var req UsageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Success == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "success field is required")
	}

	s.mu.Lock()
	p, err := s.engine.RecordUsage(c.Request().Context(), c.Param("id"), *req.Success)
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeprecate(c echo.Context) error {
	var req DeprecateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	p, err := s.engine.Deprecate(c.Request().Context(), c.Param("id"), req.Reason)
	s.mu.Unlock()
	if err != nil {
		return s.engineError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func parseOptionalType(s string) (pattern.Type, error) {
	if s == "" {
		return "", nil
	}
	t, err := pattern.ParseType(s)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return t, nil
}

// engineError maps engine errors to HTTP errors. Storage failures are
// logged and reported without detail.
func (s *Server) engineError(err error) error {
	switch {
	case errors.Is(err, pattern.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, pattern.ErrInvalidType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, extraction.ErrAllExtractorsFailed):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled")
	}
	s.logger.Error("engine request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// Package http serves the learning engine over a local JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/learning"
)

// Server provides HTTP endpoints for patternd.
type Server struct {
	echo    *echo.Echo
	engine  *learning.Engine
	logger  *zap.Logger
	config  Config
	metrics *HTTPMetrics

	// mu serializes engine calls; the engine assumes one caller at a time.
	mu sync.Mutex
}

// NewServer creates a new HTTP server around engine.
func NewServer(engine *learning.Engine, logger *zap.Logger, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid http config: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		engine:  engine,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.MaxBodySize))
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.requestLogger())
	if cfg.RateLimit > 0 {
		e.Use(newRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware())
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the error so the logged status is final.
				c.Error(err)
			}

			s.logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/learn", s.handleLearn)
	v1.POST("/recommend", s.handleRecommend)
	v1.POST("/similar", s.handleSimilar)
	v1.GET("/stats", s.handleStats)
	v1.GET("/patterns/:id", s.handleGet)
	v1.GET("/patterns/:id/history", s.handleHistory)
	v1.POST("/patterns/:id/usage", s.handleUsage)
	v1.POST("/patterns/:id/deprecate", s.handleDeprecate)
}

// Start listens on the configured address and blocks until ctx is
// cancelled, then shuts down gracefully within the configured timeout.
// A graceful shutdown returns http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

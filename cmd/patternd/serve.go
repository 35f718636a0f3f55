package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/patternd/internal/http"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the learning engine over a local HTTP API",
		Long: `Serve learn, recommend, similar, usage, deprecate, history and stats as a
JSON API. Prometheus metrics are exposed at /metrics. The server stops
gracefully on SIGINT or SIGTERM.

Examples:
  # Serve on the configured address (default localhost:9191)
  patternd serve

  # Serve on another port
  patternd serve --port 9292`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				cfg := a.cfg.HTTP
				if cmd.Flags().Changed("host") {
					cfg.Host = host
				}
				if cmd.Flags().Changed("port") {
					cfg.Port = port
				}

				zl := a.logger.Underlying()
				srv, err := httpserver.NewServer(a.engine, zl.Named("http"), cfg)
				if err != nil {
					return fmt.Errorf("failed to create http server: %w", err)
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				zl.Info("patternd serving",
					zap.String("addr", cfg.Addr()),
					zap.String("health_endpoint", fmt.Sprintf("http://%s/health", cfg.Addr())),
					zap.String("metrics_endpoint", "/metrics"))

				if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides http.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides http.port)")
	return cmd
}

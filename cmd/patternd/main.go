// Package main implements the patternd CLI: learn patterns from session
// records, recommend them for new work and record how they performed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/extraction"
	"github.com/fyrsmithlabs/patternd/internal/learning"
	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/secrets"
	"github.com/fyrsmithlabs/patternd/internal/store"
	"github.com/fyrsmithlabs/patternd/internal/telemetry"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	outputJSON bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "patternd",
		Short: "Learn reusable patterns from development sessions",
		Long: `patternd extracts reusable patterns (workflows, decisions, code structures,
error fixes, architecture and configuration recipes) from development session
records, merges them with what it already knows and recommends them for new work.

Examples:
  # Learn from a session record
  patternd learn session.json

  # Recommend patterns for a task
  patternd recommend "add retry logic to the payment client" --limit 3

  # Report that a pattern worked
  patternd usage 3f1c... --success`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/patternd/config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides store.path)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.outputJSON, "json", false, "Output results as JSON")

	root.AddCommand(
		newLearnCmd(opts),
		newRecommendCmd(opts),
		newSimilarCmd(opts),
		newUsageCmd(opts),
		newDeprecateCmd(opts),
		newHistoryCmd(opts),
		newStatsCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// app is the wired service graph for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     store.Store
	engine    *learning.Engine
}

// openApp loads configuration and wires config -> logging -> telemetry ->
// store -> scrubber -> pipeline -> engine.
func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	var persistErr error
	if errors.Is(err, config.ErrPersist) && cfg != nil {
		persistErr = err
	} else if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.dbPath != "" {
		cfg.Store.Backend = store.BackendSQLite
		cfg.Store.Path = opts.dbPath
	}

	logger, err := logging.NewLogger(&cfg.Log, nil, logging.WithWriter(cmd.ErrOrStderr()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := logger.Underlying()
	if persistErr != nil {
		zl.Warn("config file not updated", zap.Error(persistErr))
	}

	tel, err := telemetry.New(cmd.Context(), cfg.Telemetry, zl.Named("telemetry"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	st, err := store.Open(cfg.Store, zl.Named("store"))
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to open pattern store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, telemetry: tel, store: st}

	scrubber, err := secrets.New(cfg.Secrets)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize secret scrubber: %w", err)
	}

	pipeline, err := extraction.NewPipeline(cfg.Extraction, scrubber, zl.Named("extraction"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize extraction pipeline: %w", err)
	}

	a.engine, err = learning.NewEngine(st, cfg.Learning, zl.Named("learning"),
		learning.WithPipeline(pipeline),
		learning.WithTracer(tel.Tracer("github.com/fyrsmithlabs/patternd/internal/learning")),
	)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize learning engine: %w", err)
	}
	return a, nil
}

// Close releases the store, flushes telemetry and syncs the logger.
func (a *app) Close() error {
	err := a.store.Close()
	if terr := a.telemetry.Shutdown(context.Background()); terr != nil {
		a.logger.Underlying().Warn("telemetry shutdown failed", zap.Error(terr))
	}
	_ = a.logger.Sync()
	return err
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithCommand(ctx, cmd.Name())
	return fn(logging.WithLogger(ctx, a.logger), a)
}

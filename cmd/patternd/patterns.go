package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/logging"
)

func newUsageCmd(opts *globalOptions) *cobra.Command {
	var success, failure bool

	cmd := &cobra.Command{
		Use:   "usage <pattern-id>",
		Short: "Record the outcome of applying a pattern",
		Long: `Record that a pattern was applied and whether it worked. Frequency, reuse
count, success rate, quality and confidence are updated.

Examples:
  patternd usage 3f1c0b7e-... --success
  patternd usage 3f1c0b7e-... --failure`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if success == failure {
				return fmt.Errorf("exactly one of --success or --failure is required")
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ctx = logging.WithPatternID(ctx, args[0])
				p, err := a.engine.RecordUsage(ctx, args[0], success)
				if err != nil {
					return err
				}
				logging.FromContext(ctx).Debug(ctx, "usage recorded", zap.Bool("success", success))

				if opts.outputJSON {
					return outputJSON(cmd.OutOrStdout(), p)
				}
				printf(cmd, "Pattern %s: success rate %.2f, quality %.2f, confidence %.2f, reused %d times\n",
					p.ID, p.SuccessRate, p.QualityScore, p.Confidence, p.ReuseCount)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&success, "success", false, "The pattern worked")
	cmd.Flags().BoolVar(&failure, "failure", false, "The pattern did not work")
	cmd.MarkFlagsMutuallyExclusive("success", "failure")
	return cmd
}

func newDeprecateCmd(opts *globalOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "deprecate <pattern-id>",
		Short: "Retire a pattern from recommendation and merging",
		Long: `Mark a pattern as deprecated. Deprecated patterns are kept for history but
are never recommended or merged into.

Examples:
  patternd deprecate 3f1c0b7e-... --reason "superseded by the v2 deploy flow"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p, err := a.engine.Deprecate(logging.WithPatternID(ctx, args[0]), args[0], reason)
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return outputJSON(cmd.OutOrStdout(), p)
				}
				printf(cmd, "Pattern %s deprecated\n", p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the pattern is retired")
	return cmd
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <pattern-id>",
		Short: "Show the version history of a pattern",
		Long: `Show the merge and deprecation events recorded for a pattern, oldest first.

Examples:
  patternd history 3f1c0b7e-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entries, err := a.engine.History(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return outputJSON(cmd.OutOrStdout(), entries)
				}
				if len(entries) == 0 {
					printf(cmd, "No history for pattern %s\n", args[0])
					return nil
				}

				w := newTable(cmd)
				fmt.Fprintln(w, "AT\tEVENT\tSIMILARITY\tSESSION\tDETAIL")
				for _, e := range entries {
					detail := e.Template
					if e.Reason != "" {
						detail = e.Reason
					}
					fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
						e.At.Format("2006-01-02 15:04"),
						e.Event,
						e.Similarity,
						truncate(e.SessionID, 20),
						truncate(detail, 50),
					)
				}
				return w.Flush()
			})
		},
	}
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-type pattern statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				stats, err := a.engine.Stats(ctx)
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return outputJSON(cmd.OutOrStdout(), stats)
				}
				if len(stats) == 0 {
					printf(cmd, "No patterns stored\n")
					return nil
				}

				w := newTable(cmd)
				fmt.Fprintln(w, "TYPE\tCOUNT\tDEPRECATED\tAVG QUALITY\tAVG CONFIDENCE\tFREQUENCY\tREUSE")
				for _, s := range stats {
					fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.2f\t%d\t%d\n",
						s.Type, s.Count, s.Deprecated, s.AvgQuality, s.AvgConfidence, s.TotalFrequency, s.TotalReuse)
				}
				return w.Flush()
			})
		},
	}
}

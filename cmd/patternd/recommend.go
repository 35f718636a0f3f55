package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patternd/internal/learning"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

func parseTypeFlag(s string) (pattern.Type, error) {
	if s == "" {
		return "", nil
	}
	return pattern.ParseType(s)
}

func newRecommendCmd(opts *globalOptions) *cobra.Command {
	var (
		typeName   string
		minQuality float64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "recommend <context>",
		Short: "Recommend patterns for a task description",
		Long: `Rank stored patterns by relevance to a free-text task description.
Relevance combines context similarity, quality, success rate and recency.

Examples:
  # Top patterns for a task
  patternd recommend "set up CI for a Go service"

  # Only error fixes, including lower quality ones
  patternd recommend "nil pointer in handler" --type error --min-quality 0.2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeFlag(typeName)
			if err != nil {
				return err
			}
			if minQuality < 0 || minQuality > 1 {
				return fmt.Errorf("--min-quality must be between 0 and 1")
			}
			if limit < 0 {
				return fmt.Errorf("--limit cannot be negative")
			}

			req := learning.Request{Context: args[0], Type: t, Limit: limit}
			if cmd.Flags().Changed("min-quality") {
				req.MinQuality = learning.QualityAtLeast(minQuality)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				recs, err := a.engine.Recommend(ctx, req)
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return outputJSON(cmd.OutOrStdout(), recs)
				}
				if len(recs) == 0 {
					printf(cmd, "No recommendations found\n")
					return nil
				}

				w := newTable(cmd)
				fmt.Fprintln(w, "ID\tTYPE\tNAME\tRELEVANCE\tQUALITY\tWHY")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
						r.Pattern.ID,
						r.Pattern.Type,
						truncate(r.Pattern.Name, 40),
						r.Relevance,
						r.Pattern.QualityScore,
						r.Justification,
					)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "Restrict to a pattern type (workflow, decision, code, error, architecture, configuration)")
	cmd.Flags().Float64Var(&minQuality, "min-quality", 0, "Minimum quality score (default learning.default_min_quality)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of recommendations (0 uses the configured default)")
	return cmd
}

func newSimilarCmd(opts *globalOptions) *cobra.Command {
	var (
		typeName string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "similar <text>",
		Short: "Find patterns whose template resembles text",
		Long: `Find active patterns whose template resembles the given text, most similar
first.

Examples:
  patternd similar "run tests then deploy to staging" --type workflow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeFlag(typeName)
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("--limit cannot be negative")
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				matches, err := a.engine.FindSimilar(ctx, args[0], t, limit)
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return outputJSON(cmd.OutOrStdout(), matches)
				}
				if len(matches) == 0 {
					printf(cmd, "No similar patterns found\n")
					return nil
				}

				w := newTable(cmd)
				fmt.Fprintln(w, "ID\tTYPE\tSIMILARITY\tTEMPLATE")
				for _, m := range matches {
					fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n",
						m.Pattern.ID,
						m.Pattern.Type,
						m.Similarity,
						truncate(m.Pattern.Template, 60),
					)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "Restrict to a pattern type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of matches (0 uses the configured default)")
	return cmd
}

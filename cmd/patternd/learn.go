package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

// learnOutput is the JSON form of a learn run.
type learnOutput struct {
	SessionID  string          `json:"session_id"`
	Candidates int             `json:"candidates"`
	Inserted   int             `json:"inserted"`
	Merged     int             `json:"merged"`
	Redactions int             `json:"redactions"`
	Failures   []failureOutput `json:"failures,omitempty"`
}

type failureOutput struct {
	Extractor string `json:"extractor"`
	Error     string `json:"error"`
}

func newLearnCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <session.json>",
		Short: "Extract and store patterns from a session record",
		Long: `Extract candidate patterns from a session record and merge them into the
pattern store. Secrets are redacted before extraction. Use "-" to read the
record from stdin.

Examples:
  # Learn from a file
  patternd learn session.json

  # Learn from stdin
  cat session.json | patternd learn -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readSession(cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ctx = logging.WithSessionID(ctx, rec.SessionID)
				res, err := a.engine.Learn(ctx, rec)
				if err != nil {
					return err
				}
				logging.FromContext(ctx).Debug(ctx, "learn finished", zap.Int("inserted", res.Inserted), zap.Int("merged", res.Merged))

				out := learnOutput{
					SessionID:  res.SessionID,
					Candidates: res.Candidates,
					Inserted:   res.Inserted,
					Merged:     res.Merged,
					Redactions: res.Redactions,
				}
				for _, f := range res.Failures {
					out.Failures = append(out.Failures, failureOutput{Extractor: f.Extractor, Error: f.Err.Error()})
				}
				if opts.outputJSON {
					return outputJSON(cmd.OutOrStdout(), out)
				}

				printf(cmd, "Session %s: %d candidates, %d new, %d merged, %d redactions\n",
					out.SessionID, out.Candidates, out.Inserted, out.Merged, out.Redactions)
				for _, f := range out.Failures {
					printf(cmd, "  extractor %s failed: %s\n", f.Extractor, f.Error)
				}
				return nil
			})
		},
	}
}

func readSession(cmd *cobra.Command, path string) (*session.Record, error) {
	if path == "-" {
		return session.Decode(cmd.InOrStdin())
	}
	return session.Load(path)
}

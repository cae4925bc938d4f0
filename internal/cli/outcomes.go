package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/store"
)

// OutcomesOptions holds flags for the outcomes command.
type OutcomesOptions struct {
	*RootOptions
	Database      string
	CorrelationID string
	Label         string
	Limit         int
	Summary       bool
	Check         bool
}

// OutcomesResult is the JSON payload of the outcomes command.
type OutcomesResult struct {
	Outcomes    []store.Outcome `json:"outcomes,omitempty"`
	Counts      map[string]int  `json:"counts,omitempty"`
	Regressions int             `json:"regressions"`
}

// NewOutcomesCommand creates the outcomes command.
func NewOutcomesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OutcomesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "List TEST outcomes",
		Long: `List the outcome labels written by TEST runs.

With --check the command fails when any listed outcome is not SUCCESS, which
makes it usable as a CI gate after a replay run.

Exit codes:
  0 - Listed (and, with --check, every outcome is SUCCESS)
  1 - --check found regressions
  2 - Command error

Examples:
  rewind outcomes --db ./rewind.db
  rewind outcomes --label COMPARE_FAILED --limit 10
  rewind outcomes --summary --check`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutcomes(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringVar(&opts.CorrelationID, "id", "", "only outcomes of this correlation id")
	cmd.Flags().StringVar(&opts.Label, "label", "", "only outcomes with this label")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum outcomes to list (0 = all)")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "print counts per label instead of rows")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "exit 1 when any outcome is not SUCCESS")

	return cmd
}

func runOutcomes(opts *OutcomesOptions, cmd *cobra.Command) error {
	label := strings.ToUpper(opts.Label)
	if label != "" && !slices.Contains(engine.OutcomeLabels, engine.OutcomeLabel(label)) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown label %q: must be one of %v", opts.Label, engine.OutcomeLabels))
	}

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var result OutcomesResult
	if opts.Summary {
		result.Counts, err = st.CountOutcomes(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count outcomes", err)
		}
		for l, n := range result.Counts {
			if l != string(engine.OutcomeSuccess) {
				result.Regressions += n
			}
		}
	} else {
		result.Outcomes, err = st.ListOutcomes(ctx, store.OutcomeFilter{
			CorrelationID: opts.CorrelationID,
			Label:         label,
			Limit:         opts.Limit,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list outcomes", err)
		}
		for _, o := range result.Outcomes {
			if o.Label != string(engine.OutcomeSuccess) {
				result.Regressions++
			}
		}
	}

	failed := opts.Check && result.Regressions > 0

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if failed {
			response.Status = "error"
			response.Error = &CLIError{Code: CodeRegression, Message: fmt.Sprintf("%d regression(s)", result.Regressions)}
		}
		if err := writeJSON(cmd, response); err != nil {
			return err
		}
	} else {
		writeOutcomesText(cmd, opts, result)
	}

	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d regression(s)", result.Regressions))
	}
	return nil
}

func writeOutcomesText(cmd *cobra.Command, opts *OutcomesOptions, result OutcomesResult) {
	w := cmd.OutOrStdout()

	if opts.Summary {
		if len(result.Counts) == 0 {
			fmt.Fprintln(w, "No outcomes found in database.")
			return
		}
		for _, l := range engine.OutcomeLabels {
			if n, ok := result.Counts[string(l)]; ok {
				fmt.Fprintf(w, "%-26s %d\n", l, n)
			}
		}
		return
	}

	if len(result.Outcomes) == 0 {
		fmt.Fprintln(w, "No outcomes found in database.")
		return
	}
	for _, o := range result.Outcomes {
		status := "✓"
		if o.Label != string(engine.OutcomeSuccess) {
			status = "✗"
		}
		fmt.Fprintf(w, "%s #%d %s %s\n", status, o.Seq, o.CorrelationID, o.Label)
		if opts.Verbose && o.Detail != "{}" {
			fmt.Fprintf(w, "  %s\n", o.Detail)
		}
	}
}

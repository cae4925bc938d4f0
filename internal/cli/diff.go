package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/diff"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Ignore []string // kind=pattern
}

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	Count int          `json:"count"`
	Diffs []diff.Entry `json:"diffs"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <expected> <actual>",
		Short: "Structurally compare two payload files",
		Long: `Compare two payload files the way TEST mode compares responses.

Object keys are compared regardless of order and array elements are paired
regardless of position. Ignore rules from --config apply, and --ignore adds
more in kind=pattern form (kinds: add, modify, remove, move).

Exit codes:
  0 - Payloads are equivalent
  1 - Differences found
  2 - Command error (unreadable file, bad ignore rule, etc.)

Examples:
  rewind diff recorded.json live.json
  rewind diff recorded.json live.json --ignore 'modify=/meta/.*'
  rewind diff recorded.json live.json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Ignore, "ignore", nil, "ignore rule kind=pattern (repeatable)")

	return cmd
}

func runDiff(opts *DiffOptions, cmd *cobra.Command, expectedPath, actualPath string) error {
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read expected payload", err)
	}
	actual, err := os.ReadFile(actualPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read actual payload", err)
	}

	rules, err := diffIgnoreRules(opts)
	if err != nil {
		return err
	}

	c := diff.New(diff.WithIgnoreRules(rules))
	diffs := diff.DiffsOf(c.Compare(expected, actual))
	if diffs == nil {
		diffs = []diff.Entry{}
	}
	result := DiffResult{Count: len(diffs), Diffs: diffs}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if result.Count > 0 {
			response.Status = "error"
			response.Error = &CLIError{Code: CodeDiff, Message: "payloads differ"}
		}
		if err := writeJSON(cmd, response); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if result.Count == 0 {
			fmt.Fprintln(w, "No differences.")
		} else {
			fmt.Fprintf(w, "%d difference(s)\n", result.Count)
			for _, d := range result.Diffs {
				fmt.Fprintln(w, d.String())
			}
		}
	}

	if result.Count > 0 {
		return NewExitError(ExitFailure, "payloads differ")
	}
	return nil
}

// diffIgnoreRules merges configured rules with --ignore flags. The config is
// only consulted when --config was given.
func diffIgnoreRules(opts *DiffOptions) (*diff.IgnoreRules, error) {
	patterns := map[string][]string{}
	if opts.Config != "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return nil, err
		}
		for kind, ps := range cfg.Ignore {
			patterns[kind] = append(patterns[kind], ps...)
		}
	}
	for _, rule := range opts.Ignore {
		kind, pattern, ok := strings.Cut(rule, "=")
		if !ok || kind == "" || pattern == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid ignore rule %q: want kind=pattern", rule))
		}
		patterns[kind] = append(patterns[kind], pattern)
	}

	rules, err := diff.CompileIgnoreRules(patterns)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid ignore rule", err)
	}
	return rules, nil
}

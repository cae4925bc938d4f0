package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/serde"
	"github.com/roach88/rewind/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
}

// ShowResult summarizes one recording.
type ShowResult struct {
	CorrelationID string         `json:"correlation_id"`
	Mode          engine.Mode    `json:"mode"`
	State         string         `json:"state"`
	Tag           string         `json:"tag,omitempty"`
	Request       string         `json:"request,omitempty"`
	Response      string         `json:"response,omitempty"`
	Operations    map[string]int `json:"operations"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <correlation-id>",
		Short: "Show one recording",
		Long: `Decode a stored recording and print its request, response and the
number of recorded invocations per operation.

Exit codes:
  0 - Recording shown
  2 - Recording not found or unreadable

Examples:
  rewind show 0190c2f4-7d1e-7c3a-9b8e-5f0a1d2c3b4e --db ./rewind.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd, args[0])
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command, id string) error {
	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := st.Read(context.Background(), id)
	if errors.Is(err, store.ErrNotFound) {
		if opts.Format == "json" {
			_ = writeJSON(cmd, CLIResponse{
				Status:        "error",
				CorrelationID: id,
				Error:         &CLIError{Code: CodeNotFound, Message: "recording not found"},
			})
		}
		return WrapExitError(ExitCommandError, "recording not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read recording", err)
	}

	var snap engine.RecordSnapshot
	if err := (serde.JSONCodec{}).Deserialize(data, &snap); err != nil {
		return WrapExitError(ExitCommandError, "failed to decode recording", err)
	}
	result := summarize(id, snap)

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", CorrelationID: id, Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Recording: %s\n", result.CorrelationID)
	fmt.Fprintf(w, "Mode: %s\n", result.Mode)
	fmt.Fprintf(w, "State: %s\n", result.State)
	if result.Tag != "" {
		fmt.Fprintf(w, "Tag: %s\n", result.Tag)
	}
	fmt.Fprintf(w, "Request: %s\n", result.Request)
	fmt.Fprintf(w, "Response: %s\n", result.Response)
	fmt.Fprintln(w, "Operations:")
	if len(result.Operations) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, op := range slices.Sorted(maps.Keys(result.Operations)) {
		fmt.Fprintf(w, "  %s: %d invocation(s)\n", op, result.Operations[op])
	}
	return nil
}

func summarize(id string, snap engine.RecordSnapshot) ShowResult {
	ops := make(map[string]int, len(snap.Timelines))
	for op, entries := range snap.Timelines {
		ops[op] = len(entries)
	}
	return ShowResult{
		CorrelationID: id,
		Mode:          snap.Mode,
		State:         snap.State,
		Tag:           snap.Tag,
		Request:       string(snap.Request),
		Response:      string(snap.Response),
		Operations:    ops,
	}
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// ListedRecording is one row of the list command's JSON output.
type ListedRecording struct {
	CorrelationID string    `json:"correlation_id"`
	Mode          string    `json:"mode"`
	Size          int       `json:"size"`
	Fingerprint   string    `json:"fingerprint"`
	WrittenAt     time.Time `json:"written_at"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recordings",
		Long: `List the recordings in the database, ordered by correlation id.

Examples:
  rewind list --db ./rewind.db
  rewind list --limit 20 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum recordings to list (0 = all)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListRecordings(context.Background(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list recordings", err)
	}

	if opts.Format == "json" {
		rows := make([]ListedRecording, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, listed(r))
		}
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: rows})
	}

	w := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recordings found in database.")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d bytes\t%s\n", r.CorrelationID, r.Mode, r.Size, r.WrittenAt.Format(time.RFC3339))
	}
	return nil
}

func listed(r store.Recording) ListedRecording {
	return ListedRecording{
		CorrelationID: r.CorrelationID,
		Mode:          r.Mode,
		Size:          r.Size,
		Fingerprint:   r.Fingerprint,
		WrittenAt:     r.WrittenAt,
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/store"
)

// QueueOptions holds flags for the compact and drain commands.
type QueueOptions struct {
	*RootOptions
	Database string
}

// QueueResult reports the durable queue after a maintenance command.
type QueueResult struct {
	Delivered int `json:"delivered"`
	Pending   int `json:"pending"`
	Rows      int `json:"rows"`
}

// NewCompactCommand creates the compact command.
func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Delete consumed rows from the durable queue",
		Long: `Delete queue rows whose snapshots already reached the recordings table.

Running services compact on their own every compact_interval; this command
is for databases no service has open.

Examples:
  rewind compact --db ./rewind.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Deliver pending queue snapshots to the recordings table",
		Long: `Move every snapshot still waiting in the durable queue into the
recordings table, then compact the queue. Use after a service stopped before
its dispatcher caught up.

Examples:
  rewind drain --db ./rewind.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

func runCompact(opts *QueueOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	q := st.Queue()
	if err := q.Compact(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to compact queue", err)
	}

	result, err := queueResult(ctx, q, 0)
	if err != nil {
		return err
	}
	return writeQueueResult(cmd, opts, result, "Queue compacted")
}

func runDrain(opts *QueueOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	before, err := st.Queue().Pending(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to inspect queue", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.Default()
	}
	d := engine.NewDispatcher(st, st.Queue(), engine.WithDispatcherLogger(logger))
	d.Stop()
	if err := d.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to drain queue", err)
	}
	if err := st.Queue().Compact(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to compact queue", err)
	}

	result, err := queueResult(ctx, st.Queue(), before)
	if err != nil {
		return err
	}
	return writeQueueResult(cmd, opts, result, "Queue drained")
}

// queueResult reads the queue counters after a command. pendingBefore is
// the pending count before the command ran.
func queueResult(ctx context.Context, q *store.Queue, pendingBefore int) (QueueResult, error) {
	pending, err := q.Pending(ctx)
	if err != nil {
		return QueueResult{}, WrapExitError(ExitCommandError, "failed to inspect queue", err)
	}
	rows, err := q.Len(ctx)
	if err != nil {
		return QueueResult{}, WrapExitError(ExitCommandError, "failed to inspect queue", err)
	}
	return QueueResult{
		Delivered: max(pendingBefore-pending, 0),
		Pending:   pending,
		Rows:      rows,
	}, nil
}

func writeQueueResult(cmd *cobra.Command, opts *QueueOptions, result QueueResult, headline string) error {
	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: result})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, headline)
	fmt.Fprintf(w, "  Delivered: %d\n", result.Delivered)
	fmt.Fprintf(w, "  Pending: %d\n", result.Pending)
	fmt.Fprintf(w, "  Rows: %d\n", result.Rows)
	return nil
}

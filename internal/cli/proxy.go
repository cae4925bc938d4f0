package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/httpcapture"
	"github.com/roach88/rewind/internal/store"
)

// ProxyOptions holds flags for the proxy command.
type ProxyOptions struct {
	*RootOptions
	Database        string
	Upstream        string
	Listen          string
	ShutdownTimeout time.Duration
}

// NewProxyCommand creates the proxy command.
func NewProxyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProxyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Record or replay an upstream behind a reverse proxy",
		Long: `Serve a reverse proxy to --upstream. Each request runs in the configured
mode: PROFILE records the upstream exchange, TEST answers it from the
recording and writes an outcome, DYNAMIC reads the mode from the
X-Rewind-Mode header.

Snapshots are persisted asynchronously through the database's durable queue.
The proxy stops on SIGINT or SIGTERM after draining in-flight requests and
the queue.

Examples:
  REWIND_MODE=profile rewind proxy --upstream http://localhost:9000
  rewind proxy -c rewind.yaml --upstream http://pricing:8080 --listen :8081`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runProxy(ctx, opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringVar(&opts.Upstream, "upstream", "", "upstream base URL (required)")
	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "address to listen on")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for in-flight requests at shutdown")
	_ = cmd.MarkFlagRequired("upstream")

	return cmd
}

func runProxy(ctx context.Context, opts *ProxyOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	upstream, err := url.Parse(opts.Upstream)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid upstream", err)
	}

	db := opts.Database
	if db == "" {
		db = cfg.Database
	}
	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	handler, dispatcher, err := buildProxy(cfg, st, upstream, slog.Default())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build proxy", err)
	}

	srv := &http.Server{
		Addr:              opts.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serve(ctx, srv, dispatcher, opts.ShutdownTimeout)
}

// buildProxy wires the engine, the dispatcher and the HTTP stack for cfg.
func buildProxy(cfg *config.Config, st *store.Store, upstream *url.URL, logger *slog.Logger) (http.Handler, *engine.Dispatcher, error) {
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return nil, nil, err
	}
	e := engine.New(append(engineOpts, engine.WithLogger(logger))...)

	dispatcher := engine.NewDispatcher(st, st.Queue(),
		engine.WithQueueCapacity(cfg.QueueCapacity),
		engine.WithCompactInterval(cfg.CompactInterval),
		engine.WithDispatcherLogger(logger),
	)
	session := engine.NewSession(e, st,
		engine.WithDispatcher(dispatcher),
		engine.WithSampler(cfg.Sampler()),
	)

	proxy, err := httpcapture.NewProxy(upstream, e, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	mw := httpcapture.New(session, cfg.ParsedMode(), httpcapture.WithLogger(logger))
	return httpcapture.NewRouter(mw, proxy), dispatcher, nil
}

// serve runs srv and the dispatcher until ctx is done, then shuts the server
// down before stopping the dispatcher so every finished request's snapshot
// is queued first.
func serve(ctx context.Context, srv *http.Server, dispatcher *engine.Dispatcher, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(context.WithoutCancel(ctx))
	})

	g.Go(func() error {
		slog.Info("proxy listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		dispatcher.Stop()
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		slog.Info("proxy stopped", "dropped_snapshots", dispatcher.Dropped())
		return nil
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "proxy failed", err)
	}
	return nil
}

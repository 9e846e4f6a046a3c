package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/beacon/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	For         time.Duration
	MetricsAddr string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the delivery loop",
		Long: `Start the delivery engine and keep sending queued records until stopped.

Records persisted by earlier runs or by "beacon track" are restored first.
On interrupt the pending queue is saved before exiting.

Example:
  beacon run --config beacon.yaml
  beacon run --metrics-addr :9102 --verbose
  beacon run --for 30s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics_addr)")

	return cmd
}

func runLoop(opts *RunOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	loop := engine.NewLoop(a.newEngine(), a.cfg.TickInterval)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	addr := opts.MetricsAddr
	if addr == "" {
		addr = a.cfg.MetricsAddr
	}
	if addr != "" {
		srv, err := serveMetrics(addr, a)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Suspending before the stop persists pending and in-flight records.
	stop := func() {
		_ = loop.Suspend()
		loop.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			stop()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if opts.For > 0 {
		timer := time.AfterFunc(opts.For, stop)
		defer timer.Stop()
	}

	if err := loop.Do(func(ctx context.Context, e *engine.Engine) {
		if err := e.Start(ctx); err != nil {
			logger.Warn("engine start failed", "error", err)
		}
	}); err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	logger.Info("delivery loop starting",
		"endpoint", a.cfg.Endpoint,
		"test_mode", a.cfg.TestMode,
		"data_dir", a.cfg.DataDir,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Delivery loop started.")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	logger.Info("delivery loop stopped")
	return nil
}

func serveMetrics(addr string, a *app) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metricsHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}

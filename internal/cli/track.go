package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/beacon/internal/engine"
	"github.com/roach88/beacon/internal/event"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	*RootOptions
	Timeout time.Duration
}

// TrackResult is the JSON payload of the track command.
type TrackResult struct {
	Type      string `json:"type"`
	Delivered bool   `json:"delivered"`
	Pending   int    `json:"pending"`
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track <type> [key=value...]",
		Short: "Record one event and try to deliver it",
		Long: `Record an event into the persisted queue and run the delivery loop until
the queue is empty or the timeout expires. Undelivered records stay queued
for the next run.

Values that parse as numbers or booleans are sent as such. Revenue,
item_purchase, tutorial, milestone and heartbeat events get a timestamp.

Example:
  beacon track revenue amount=4.99 currency=EUR
  beacon track country value=NL --timeout 5s`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to try delivering")

	return cmd
}

// parseFields builds an event body from key=value pairs.
func parseFields(typ string, pairs []string, now time.Time) (event.Fields, error) {
	if typ == "" {
		return nil, fmt.Errorf("event type is empty")
	}
	var ts time.Time
	if event.Timestamped(typ) {
		ts = now
	}
	f := event.New(typ, ts)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		if key == event.TypeKey || key == event.TimestampKey {
			return nil, fmt.Errorf("field %q is reserved", key)
		}
		f.Set(key, parseValue(value))
	}
	return f, nil
}

func parseValue(s string) any {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n
	}
	return s
}

type engineStatus struct {
	initialized bool
	analytics   bool
	settled     bool
	pending     int
}

func readStatus(e *engine.Engine) engineStatus {
	return engineStatus{
		initialized: e.Initialized(),
		analytics:   e.AnalyticsEnabled(),
		settled:     e.State() == engine.StateProcessingPending,
		pending:     e.PendingLen() + e.InFlightLen(),
	}
}

func runTrack(opts *TrackOptions, typ string, pairs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	fields, err := parseFields(typ, pairs, time.Now())
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid event", err)
	}

	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loop := engine.NewLoop(a.newEngine(), a.cfg.TickInterval)
	go func() { _ = loop.Run(ctx) }()
	defer func() {
		// Suspending persists whatever was not delivered, including a batch
		// still in flight.
		_ = loop.Suspend()
		loop.Stop()
		<-loop.Done()
	}()

	var startErr error
	err = loop.Call(ctx, func(ctx context.Context, e *engine.Engine) {
		if startErr = e.Start(ctx); startErr == nil {
			e.Track(fields)
		}
	})
	if err == nil {
		err = startErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	formatter.VerboseLog("tracked %s event", typ)

	status, err := waitDelivered(ctx, loop, opts.Timeout, a.cfg.TickInterval)
	if err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	result := TrackResult{Type: typ, Delivered: status.pending == 0, Pending: status.pending}
	switch {
	case !status.analytics:
		_ = formatter.Result(result, "analytics disabled for this device; event dropped")
		return nil
	case result.Delivered:
		_ = formatter.Result(result, "delivered")
		return nil
	}
	_ = formatter.Result(result, fmt.Sprintf("queued: %d records pending", result.Pending))
	return NewExitError(ExitFailure, "delivery incomplete")
}

// waitDelivered polls until the engine has nothing left to send or timeout
// passes, returning the last status seen.
func waitDelivered(ctx context.Context, loop *engine.Loop, timeout, every time.Duration) (engineStatus, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(every)
	defer poll.Stop()

	var status engineStatus
	for {
		err := loop.Call(ctx, func(_ context.Context, e *engine.Engine) {
			status = readStatus(e)
		})
		if err != nil {
			return status, err
		}
		if status.initialized && status.settled && (status.pending == 0 || !status.analytics) {
			return status, nil
		}

		select {
		case <-deadline.C:
			return status, nil
		case <-ctx.Done():
			return status, nil
		case <-poll.C:
		}
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/beacon/internal/queue"
)

// QueueSummary is the JSON payload of queue inspect.
type QueueSummary struct {
	Count   int             `json:"count"`
	Types   map[string]int  `json:"types"`
	Records json.RawMessage `json:"records"`
}

// NewQueueCommand groups the persisted queue subcommands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the persisted queue",
	}
	cmd.AddCommand(newQueueInspectCommand(rootOpts))
	cmd.AddCommand(newQueueClearCommand(rootOpts))
	return cmd
}

func newQueueInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the records waiting for delivery",
		Long: `Decode the persisted queue and print it as the JSON array that would be
sent to the collector.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueInspect(rootOpts, cmd)
		},
	}
}

func runQueueInspect(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	a, err := openStorage(opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := a.backing.ReadBlob(ctx, queue.DefaultKey)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = formatter.Error(ErrCodeStorage, "failed to read queue", err.Error())
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}

	q := queue.New()
	if len(data) > 0 {
		records, err := queue.Decode(data, a.resolver())
		if err != nil {
			_ = formatter.Error(ErrCodeStorage, "persisted queue is unreadable", err.Error())
			return WrapExitError(ExitCommandError, "failed to decode queue", err)
		}
		for _, r := range records {
			q.Append(r)
		}
	}

	types := make(map[string]int)
	for r := range q.All() {
		types[r.EventType()]++
	}

	rendered := q.Render()
	formatter.VerboseLog("%d bytes persisted", len(data))

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(rendered), "", "  "); err != nil {
		pretty.Reset()
		pretty.WriteString(rendered)
	}
	text := fmt.Sprintf("%d records\n%s", q.Len(), pretty.String())
	return formatter.Result(QueueSummary{Count: q.Len(), Types: types, Records: json.RawMessage(rendered)}, text)
}

func newQueueClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Delete the persisted queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			a, err := openStorage(rootOpts, cmd)
			if err != nil {
				_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			err = a.backing.DeleteBlob(ctx, queue.DefaultKey)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				_ = formatter.Error(ErrCodeStorage, "failed to delete queue", err.Error())
				return WrapExitError(ExitCommandError, "failed to delete queue", err)
			}
			return formatter.Result(map[string]bool{"cleared": true}, "queue cleared")
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// SyncPendingOptions holds flags for the sync pending command.
type SyncPendingOptions struct {
	*RootOptions
	Limit int
}

// ackView reports how many entries an ack removed.
type ackView struct {
	Acked int64 `json:"acked"`
}

func (v ackView) String() string {
	return fmt.Sprintf("Acknowledged %d recipient(s).", v.Acked)
}

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and acknowledge the storage sync queue",
		Long: `Every merge marks the recipients it touched as pending storage sync.
A sync agent lists pending recipients, pushes them, then acknowledges them.`,
	}
	cmd.AddCommand(newSyncPendingCommand(rootOpts))
	cmd.AddCommand(newSyncAckCommand(rootOpts))
	return cmd
}

func newSyncPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncPendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "pending",
		Short:         "List recipients pending storage sync, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncPending(opts, cmd)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries to list (0 = all)")
	return cmd
}

func runSyncPending(opts *SyncPendingOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Limit < 0 {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, "--limit must be non-negative", nil)
	}

	ctx := cmd.Context()
	st, _, _, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var entries []ir.SyncEntry
	err = st.WithReadTransaction(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = store.SyncQueue{}.Pending(ctx, tx, opts.Limit)
		return err
	})
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStore, "failed to read sync queue", err)
	}

	ids := make(pendingList, len(entries))
	for i, e := range entries {
		ids[i] = e.RecipientUniqueID
	}
	return f.Success(ids)
}

func newSyncAckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ack <unique-id>...",
		Short:         "Remove synced recipients from the queue",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncAck(rootOpts, args, cmd)
		},
	}
}

func runSyncAck(opts *RootOptions, uniqueIDs []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	st, _, _, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var acked int64
	err = st.WithWriteTransaction(ctx, func(tx *store.Tx) error {
		var err error
		acked, err = store.SyncQueue{}.Ack(ctx, tx, uniqueIDs...)
		return err
	})
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStore, "failed to acknowledge", err)
	}
	return f.Success(ackView{Acked: acked})
}

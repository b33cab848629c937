package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// SessionOptions holds flags for the session set command.
type SessionOptions struct {
	*RootOptions
	Recipient string
	Device    uint32
	Inactive  bool
}

// sessionView is a recorded session as printed by the CLI.
type sessionView struct {
	Recipient string `json:"recipient_unique_id"`
	Device    uint32 `json:"device_id"`
	Active    bool   `json:"active"`
}

func (v sessionView) String() string {
	state := "active"
	if !v.Active {
		state = "inactive"
	}
	return fmt.Sprintf("%s\tdevice=%d\t%s", v.Recipient, v.Device, state)
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Record secure session state used to resolve collisions",
	}
	cmd.AddCommand(newSessionSetCommand(rootOpts))
	return cmd
}

func newSessionSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Mark a recipient's device session active or inactive",
		Long: `Mark a recipient's device session active or inactive.

When a service-id-only record and a phone-only record are unified, the
phone-only record survives only if it alone has an active session on the
primary device (device 1).

Example:
  rmerge session set --recipient 0190a1b2-... --device 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionSet(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "recipient unique id (required)")
	cmd.Flags().Uint32Var(&opts.Device, "device", store.PrimaryDeviceID, "device id")
	cmd.Flags().BoolVar(&opts.Inactive, "inactive", false, "mark the session inactive")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}

func runSessionSet(opts *SessionOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Recipient == "" {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, "--recipient is required", nil)
	}

	ctx := cmd.Context()
	st, _, _, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var r *ir.Recipient
	err = st.WithWriteTransaction(ctx, func(tx *store.Tx) error {
		var err error
		r, err = store.Recipients{}.FetchByUniqueID(ctx, tx, opts.Recipient)
		if err != nil || r == nil {
			return err
		}
		return store.Sessions{}.SetSession(ctx, tx, r.UniqueID, opts.Device, !opts.Inactive)
	})
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStore, "failed to set session", err)
	}
	if r == nil {
		return fail(f, ExitFailure, ErrCodeNotFound, fmt.Sprintf("no recipient with unique id %s", opts.Recipient), nil)
	}
	return f.Success(sessionView{Recipient: r.UniqueID, Device: opts.Device, Active: !opts.Inactive})
}

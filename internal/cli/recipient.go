package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// RecipientShowOptions holds flags for the recipient show command.
type RecipientShowOptions struct {
	*RootOptions
	ServiceID string
	Phone     string
}

// NewRecipientCommand creates the recipient command group.
func NewRecipientCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipient",
		Short: "Inspect recipient records",
	}
	cmd.AddCommand(newRecipientShowCommand(rootOpts))
	cmd.AddCommand(newRecipientListCommand(rootOpts))
	return cmd
}

func newRecipientShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecipientShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the recipient holding a service id or phone number",
		Long: `Show the recipient holding a service id or phone number.
Exactly one of --service-id and --phone is required.

Examples:
  rmerge recipient show --service-id 5f0c...
  rmerge recipient show --phone +15550000001`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipientShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ServiceID, "service-id", "", "service id to look up")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number to look up")
	cmd.MarkFlagsMutuallyExclusive("service-id", "phone")
	cmd.MarkFlagsOneRequired("service-id", "phone")

	return cmd
}

func runRecipientShow(opts *RecipientShowOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	sid, err := parseServiceIDFlag("service-id", opts.ServiceID)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	phone, err := parsePhoneFlag("phone", opts.Phone)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	if (sid == nil) == (phone == nil) {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, "exactly one of --service-id and --phone is required", nil)
	}

	ctx := cmd.Context()
	st, _, _, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var r *ir.Recipient
	err = st.WithReadTransaction(ctx, func(tx *store.Tx) error {
		var err error
		if sid != nil {
			r, err = store.Recipients{}.FetchByServiceID(ctx, tx, *sid)
		} else {
			r, err = store.Recipients{}.FetchByPhoneNumber(ctx, tx, *phone)
		}
		return err
	})
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStore, "failed to read recipient", err)
	}
	if r == nil {
		key := opts.ServiceID
		if phone != nil {
			key = phone.String()
		}
		return fail(f, ExitFailure, ErrCodeNotFound, fmt.Sprintf("no recipient holds %s", key), nil)
	}
	return f.Success(newRecipientView(r))
}

func newRecipientListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List every recipient",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipientList(rootOpts, cmd)
		},
	}
}

func runRecipientList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	st, _, _, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var records []*ir.Recipient
	err = st.WithReadTransaction(ctx, func(tx *store.Tx) error {
		var err error
		records, err = store.Recipients{}.List(ctx, tx)
		return err
	})
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStore, "failed to list recipients", err)
	}

	views := make(recipientList, len(records))
	for i, r := range records {
		views[i] = newRecipientView(r)
	}
	return f.Success(views)
}

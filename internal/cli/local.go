package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rmerge/internal/app"
	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// LocalOptions holds flags for the local set command.
type LocalOptions struct {
	*RootOptions
	ACI   string
	PNI   string
	Phone string
}

// NewLocalCommand creates the local command group.
func NewLocalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Manage the local account identifiers",
	}
	cmd.AddCommand(newLocalSetCommand(rootOpts))
	cmd.AddCommand(newLocalShowCommand(rootOpts))
	return cmd
}

func newLocalSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Record the local account and merge its identifiers",
		Long: `Record the local account's identifiers and merge its service id with its
phone number. Other sources can never re-associate these identifiers.

Example:
  rmerge local set --aci 1a2b... --pni 3c4d... --phone +15550009999`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalSet(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ACI, "aci", "", "account identity service id (required)")
	cmd.Flags().StringVar(&opts.PNI, "pni", "", "phone number identity service id")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number in E.164 form (required)")
	_ = cmd.MarkFlagRequired("aci")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func runLocalSet(opts *LocalOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	aci, err := parseServiceIDFlag("aci", opts.ACI)
	if err == nil && aci == nil {
		err = fmt.Errorf("--aci is required")
	}
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	pni, err := parseServiceIDFlag("pni", opts.PNI)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	phone, err := parsePhoneFlag("phone", opts.Phone)
	if err == nil && phone == nil {
		err = fmt.Errorf("--phone is required")
	}
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	ctx := cmd.Context()
	a, closeStore, err := opts.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	if _, err := a.Merge(ctx, app.MergeRequest{
		Source:    app.SourceLocal,
		ServiceID: *aci,
		PNI:       pni,
		Phone:     phone,
	}); err != nil {
		return mergeFailure(f, err)
	}
	return f.Success(newLocalView(ir.LocalIdentifiers{ACI: *aci, PNI: pni, PhoneNumber: *phone}))
}

func newLocalShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the recorded local account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalShow(rootOpts, cmd)
		},
	}
}

func runLocalShow(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	st, _, _, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var local *ir.LocalIdentifiers
	err = st.WithReadTransaction(ctx, func(tx *store.Tx) error {
		var err error
		local, err = store.LocalAccount{}.Get(ctx, tx)
		return err
	})
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStore, "failed to read local account", err)
	}
	if local == nil {
		return fail(f, ExitFailure, ErrCodeNotFound, "local account not set", nil)
	}
	return f.Success(newLocalView(*local))
}

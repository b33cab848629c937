package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rmerge/internal/app"
	"github.com/roach88/rmerge/internal/engine"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	ServiceID string
	PNI       string
	Phone     string
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <local|linked-device|directory|sender>",
		Short: "Apply an observed service id / phone number association",
		Long: `Apply an observed association between a service id and a phone number.

The source decides how much the association is trusted:
  local          the local account's own identifiers (also records them)
  linked-device  reported by another device of the local account
  directory      returned by a directory lookup (--phone required)
  sender         carried by an authenticated message

Only the local source may associate the local account's identifiers.

Examples:
  rmerge merge directory --service-id 5f0c... --phone +15550000001
  rmerge merge sender --service-id 5f0c...
  rmerge merge local --service-id 1a2b... --pni 3c4d... --phone +15550009999`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ServiceID, "service-id", "", "service id (required)")
	cmd.Flags().StringVar(&opts.PNI, "pni", "", "phone number identity (local source only)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number in E.164 form")
	_ = cmd.MarkFlagRequired("service-id")

	return cmd
}

func runMerge(opts *MergeOptions, sourceArg string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	req, err := opts.request(sourceArg)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	ctx := cmd.Context()
	a, closeStore, err := opts.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	r, err := a.Merge(ctx, req)
	if err != nil {
		return mergeFailure(f, err)
	}
	return f.Success(newRecipientView(r))
}

func (o *MergeOptions) request(sourceArg string) (app.MergeRequest, error) {
	source, err := app.ParseSource(sourceArg)
	if err != nil {
		return app.MergeRequest{}, err
	}
	sid, err := parseServiceIDFlag("service-id", o.ServiceID)
	if err != nil {
		return app.MergeRequest{}, err
	}
	if sid == nil {
		return app.MergeRequest{}, fmt.Errorf("--service-id is required")
	}
	pni, err := parseServiceIDFlag("pni", o.PNI)
	if err != nil {
		return app.MergeRequest{}, err
	}
	if pni != nil && source != app.SourceLocal {
		return app.MergeRequest{}, fmt.Errorf("--pni is only valid with source %q", app.SourceLocal)
	}
	phone, err := parsePhoneFlag("phone", o.Phone)
	if err != nil {
		return app.MergeRequest{}, err
	}
	return app.MergeRequest{Source: source, ServiceID: *sid, PNI: pni, Phone: phone}, nil
}

// mergeFailure maps a merge error to its exit code.
func mergeFailure(f *OutputFormatter, err error) error {
	switch {
	case errors.Is(err, app.ErrPhoneRequired):
		return fail(f, ExitCommandError, ErrCodeInvalidArg, "merge rejected", err)
	case engine.IsStoreError(err):
		return fail(f, ExitFailure, ErrCodeStore, "merge failed", err)
	default:
		return fail(f, ExitFailure, ErrCodeMergeFailed, "merge failed", err)
	}
}

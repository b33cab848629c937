package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rmerge/internal/app"
	"github.com/roach88/rmerge/internal/config"
	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	DB         string // overrides config database when set
	ConfigPath string
	Strict     bool // forces strict assertions on
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rmerge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "rmerge",
		Short:   "rmerge - recipient identity merging",
		Version: ir.EngineVersion,
		Long: `Maintain one recipient record per account while service ids and phone
numbers are learned from local account setup, linked devices, directory
lookups and authenticated senders.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database path (default from config, else rmerge.db)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.Strict, "strict", false, "panic on merge invariant violations")

	// Add subcommands
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewLocalCommand(opts))
	cmd.AddCommand(NewRecipientCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// resolveConfig loads the config file, if any, and applies flag overrides.
func (o *RootOptions) resolveConfig() (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if o.DB != "" {
		cfg.Database = o.DB
	}
	if o.Strict {
		cfg.StrictAssertions = true
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger writes structured logs to w, as JSON when format is "json".
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openStore resolves the configuration and opens the store. The caller
// must close the store.
func (o *RootOptions) openStore(cmd *cobra.Command) (*store.Store, config.Config, *slog.Logger, error) {
	cfg, err := o.resolveConfig()
	if err != nil {
		return nil, config.Config{}, nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), o.Format, cfg.SlogLevel())

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, config.Config{}, nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", cfg.Database), err)
	}
	logger.Debug("opened store", "database", cfg.Database)
	return st, cfg, logger, nil
}

// openApp opens the store and assembles the merge engine over it.
// The returned close function closes the store.
func (o *RootOptions) openApp(ctx context.Context, cmd *cobra.Command) (*app.App, func(), error) {
	st, cfg, logger, err := o.openStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(ctx, st,
		app.WithLogger(logger),
		app.WithStrictAssertions(cfg.StrictAssertions),
	)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to assemble merge engine", err)
	}
	return a, func() { st.Close() }, nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

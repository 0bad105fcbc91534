package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"restaurant-ops-api/internal/app"
	"restaurant-ops-api/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	Verbose bool

	open OpenFunc
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// OpenFunc opens the application backends for a command.
type OpenFunc func(ctx context.Context, log logrus.FieldLogger) (*app.App, error)

// NewRootCommand creates the restoctl root command, configured from the environment.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromEnv)
}

func newRootCommand(open OpenFunc) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "restoctl",
		Short: "Operate a restaurant ops store",
		Long:  "Operator tooling for the restaurant ops store: create, export, import and restore backups.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return &ExitError{
					Code:    ExitCommandError,
					Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats),
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}

func openFromEnv(ctx context.Context, log logrus.FieldLogger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "invalid configuration", Err: err}
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "failed to open store", Err: err}
	}
	return a, nil
}

// withApp opens the backends, runs fn, and closes them again.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	log := logrus.New()
	log.SetOutput(io.Discard)
	if o.Verbose {
		log.SetOutput(cmd.ErrOrStderr())
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := o.open(ctx, log)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return fn(ctx, a)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
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

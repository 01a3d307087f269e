package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/kiosksync/internal/app"
	"github.com/roach88/kiosksync/internal/config"
	"github.com/roach88/kiosksync/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string

	// LogWriter receives structured logs; defaults to stderr.
	LogWriter io.Writer
	// AppOptions lets tests inject collaborators into every context the
	// commands open.
	AppOptions app.Options
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kiosksync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kiosksync",
		Short: "kiosksync - kiosk order synchronization",
		Long: `Keeps kiosk order state consistent with the backend.

Status changes the backend refuses are kept in a durable local overlay and
merged into every read until the backend catches up. Without backend
credentials the CLI runs against a simulated in-process backend.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite overlay database (overrides config)")

	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewOverlayCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewBackendCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	w := o.LogWriter
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Storage.Path = o.Database
	}
	return cfg, nil
}

// openApp loads the config and builds a kiosk context. m may be nil.
func (o *RootOptions) openApp(ctx context.Context, m *metrics.Metrics) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	appOpts := o.AppOptions
	if appOpts.Logger == nil {
		appOpts.Logger = o.logger()
	}
	if m != nil {
		appOpts.Metrics = m
	}

	a, err := app.New(ctx, cfg, appOpts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return a, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

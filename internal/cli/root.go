// Package cli defines gitmirrorctl, the operator command line for the mirror.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/gitmirror/internal/app"
	"github.com/ericfisherdev/gitmirror/internal/config"
	"github.com/ericfisherdev/gitmirror/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	EnvFile  string
	DBPath   string
	LogLevel string

	cfg *config.Config
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootCmd := newRootCommand(&Options{}, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gitmirrorctl",
		Short:         "gitmirrorctl operates a gitmirror database",
		Long:          "gitmirrorctl migrates the mirror database, backfills GitHub App installations, and replays recorded webhook deliveries.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(opts.EnvFile)
			if err != nil {
				return err
			}
			if opts.DBPath != "" {
				cfg.DBPath = opts.DBPath
			}
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			opts.cfg = cfg

			logger = logging.NewLogger(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))
			slog.SetDefault(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", cfg.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "Path to an optional .env file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides GITMIRROR_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newBackfillCommand(opts),
		newReplayCommand(opts),
	)

	return cmd
}

// openApp wires the services for a command. The caller closes the App.
func openApp(ctx context.Context, opts *Options) (*app.App, error) {
	return app.Open(ctx, opts.cfg)
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}

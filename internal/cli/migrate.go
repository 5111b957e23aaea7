package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/gitmirror/internal/adapter/driven/sqlite"
)

// newMigrateCommand creates the "migrate" subcommand that applies pending schema migrations.
func newMigrateCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			db, err := sqliteadapter.NewDB(cmd.Context(), opts.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
				return err
			}

			version, dirty, err := sqliteadapter.MigrationVersion(db.Writer)
			if err != nil {
				return err
			}

			logger.Info("migrations complete", "path", opts.cfg.DBPath, "version", version, "dirty", dirty)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return err
		},
	}
}

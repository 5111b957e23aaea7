package cli

import (
	"fmt"
	"io"

	gh "github.com/google/go-github/v82/github"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/gitmirror/internal/app"
	"github.com/ericfisherdev/gitmirror/internal/application"
)

// newBackfillCommand creates the "backfill" subcommand that mirrors an
// installation the way an installation.created delivery would.
func newBackfillCommand(opts *Options) *cobra.Command {
	var (
		installationID int64
		discussions    bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill every repository granted to a GitHub App installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			ctx := cmd.Context()

			if cmd.Flags().Changed("discussions") {
				opts.cfg.BackfillDiscussions = discussions
			}

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if a.Factory == nil {
				return app.ErrNoGitHubApp
			}

			installation, err := a.Factory.Installation(ctx, installationID)
			if err != nil {
				return err
			}

			client, err := a.Clients.Get(installationID)
			if err != nil {
				return err
			}

			var repos []*gh.Repository
			for repo, err := range client.ListInstallationRepositories(ctx) {
				if err != nil {
					return fmt.Errorf("list repositories for installation %d: %w", installationID, err)
				}
				repos = append(repos, repo)
			}

			logger.Info("starting backfill",
				"installation_id", installationID,
				"account", installation.GetAccount().GetLogin(),
				"repositories", len(repos),
				"discussions", opts.cfg.BackfillDiscussions,
			)

			report := a.Backfill.Run(ctx, application.InstallationGrant{
				InstallationID: installationID,
				Installation:   installation,
				Repositories:   repos,
			})

			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return report.Err()
		},
	}

	cmd.Flags().Int64Var(&installationID, "installation", 0, "GitHub App installation id")
	cmd.Flags().BoolVar(&discussions, "discussions", false, "Also backfill reviews and comments (overrides GITMIRROR_BACKFILL_DISCUSSIONS)")
	_ = cmd.MarkFlagRequired("installation")

	return cmd
}

// printReport writes one line per failed task and a summary.
func printReport(w io.Writer, report application.Report) error {
	failed := report.Failed()
	for _, o := range failed {
		if _, err := fmt.Fprintf(w, "FAIL %s: %v\n", o.Task, o.Err); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d tasks, %d succeeded, %d failed\n", len(report.Outcomes), report.Succeeded(), len(failed))
	return err
}

// Package app assembles the mirror's adapters and services. Both the webhook
// server and the operator CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	githubadapter "github.com/ericfisherdev/gitmirror/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/gitmirror/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/gitmirror/internal/application"
	"github.com/ericfisherdev/gitmirror/internal/config"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
	"github.com/ericfisherdev/gitmirror/internal/metrics"
)

// App is the wired object graph.
type App struct {
	DB       *sqliteadapter.DB
	Events   *sqliteadapter.EventRepo
	Stores   application.Stores
	Factory  *githubadapter.Factory // Nil without GitHub App credentials.
	Clients  *application.InstallationClients
	Backfill *application.Backfill
	Router   *application.Router
	Ingest   *application.IngestService
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
}

// Open opens and migrates the database, then wires every service on top of it.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	// 1. Database (dual reader/writer with WAL mode) and migrations.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("database ready", "path", cfg.DBPath)

	a := &App{
		DB:     db,
		Events: sqliteadapter.NewEventRepo(db),
		Stores: application.Stores{
			Accounts:     sqliteadapter.NewAccountRepo(db),
			Repositories: sqliteadapter.NewRepositoryRepo(db),
			PullRequests: sqliteadapter.NewPullRequestRepo(db),
			Issues:       sqliteadapter.NewIssueRepo(db),
			Reviews:      sqliteadapter.NewReviewRepo(db),
		},
	}

	// 2. Metrics on a private registry with the runtime collectors.
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewRecorder(a.Registry)

	// 3. GitHub App factory. Without credentials the cache reports
	// ErrNoClientFactory and backfills fail per task.
	var factory driven.GitHubClientFactory
	if cfg.HasGitHubApp() {
		a.Factory, err = githubadapter.NewFactory(cfg.GitHubAppID, cfg.GitHubPrivateKey, cfg.GitHubAPIURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create github app factory: %w", err)
		}
		factory = a.Factory
	} else {
		slog.Warn("no github app configured, backfills are disabled")
	}
	a.Clients = application.NewInstallationClients(factory)

	// 4. Core services.
	a.Backfill = application.NewBackfill(a.Stores, a.Clients, application.BackfillOptions{
		Discussions: cfg.BackfillDiscussions,
		Concurrency: cfg.BackfillConcurrency,
	}, a.Metrics)

	a.Router = application.NewRouter(a.Metrics)
	application.NewEventHandlers(a.Stores, a.Backfill, a.Clients, a.Metrics).Register(a.Router)

	a.Ingest = application.NewIngestService(a.Router, a.Metrics)

	return a, nil
}

// Close waits for dispatched ingestions, then closes the database.
func (a *App) Close() error {
	a.Ingest.Wait()
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ErrNoGitHubApp is returned by operations that need App credentials.
var ErrNoGitHubApp = errors.New("GITMIRROR_GITHUB_APP_ID and GITMIRROR_GITHUB_PRIVATE_KEY are required")

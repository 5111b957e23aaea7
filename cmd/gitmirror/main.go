package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	httphandler "github.com/ericfisherdev/gitmirror/internal/adapter/driving/http"
	"github.com/ericfisherdev/gitmirror/internal/app"
	"github.com/ericfisherdev/gitmirror/internal/config"
	"github.com/ericfisherdev/gitmirror/internal/logging"
	"github.com/ericfisherdev/gitmirror/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireWebhookSecret(); err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"github_app", cfg.HasGitHubApp(),
		"backfill_discussions", cfg.BackfillDiscussions,
		"backfill_concurrency", cfg.BackfillConcurrency,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database, run migrations, wire services.
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("services wired", "handlers", len(a.Router.Keys()))

	// 4. HTTP front door.
	apiHandler := httphandler.NewHandler(a.Events, a.Ingest, cfg.WebhookSecret, a.Metrics, logger)
	handler := httphandler.NewServeMux(apiHandler, metrics.Handler(a.Registry), logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// 5. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	// 6. Stop accepting deliveries, then let dispatched ingestions finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	// 7. Drain ingestion and close the database. A backfill still running after
	// the drain window is abandoned; its audit rows allow a later replay.
	closed := make(chan error, 1)
	go func() { closed <- a.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			logger.Error("error closing app", "error", err)
		}
	case <-time.After(30 * time.Second):
		logger.Warn("ingestion still running at shutdown, exiting")
	}

	logger.Info("shutdown complete")
	return nil
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// IngestService is the entry point for recorded webhook deliveries. The
// caller persists the audit record first; ingestion failures never undo it.
type IngestService struct {
	router  *Router
	metrics Metrics
	wg      sync.WaitGroup
}

// NewIngestService creates an IngestService. metrics may be nil.
func NewIngestService(router *Router, metrics Metrics) *IngestService {
	return &IngestService{
		router:  router,
		metrics: metricsOrNop(metrics),
	}
}

// Ingest routes a recorded delivery synchronously. Failures are logged,
// counted, and returned; a handler panic is converted to an error.
func (s *IngestService) Ingest(ctx context.Context, ev model.IngestedEvent) error {
	env := ev.Envelope()
	start := time.Now()

	err := runContained(ctx, func(ctx context.Context) error {
		return s.router.Route(ctx, env)
	})
	if err != nil {
		s.metrics.HandlerFailed(env.Key())
		slog.Error("ingest event failed",
			"delivery_id", ev.DeliveryID,
			"event", env.Key(),
			"installation_id", ev.InstallationID,
			"repo", ev.RepoFullName,
			"error", err,
		)
		return fmt.Errorf("ingest %s: %w", ev.DeliveryID, err)
	}

	slog.Debug("event ingested",
		"delivery_id", ev.DeliveryID,
		"event", env.Key(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// Dispatch ingests a delivery in the background on a context detached from
// the caller's, so the webhook request can be acknowledged immediately and a
// long backfill outlives it.
func (s *IngestService) Dispatch(ctx context.Context, ev model.IngestedEvent) {
	detached := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Ingest(detached, ev)
	}()
}

// Wait blocks until every dispatched ingestion has finished.
func (s *IngestService) Wait() {
	s.wg.Wait()
}

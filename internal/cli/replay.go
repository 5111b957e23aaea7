package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// newReplayCommand creates the "replay" subcommand that re-routes recorded
// deliveries through the ingestion core. Ingestion is idempotent, so replaying
// an event that already succeeded leaves the mirror unchanged.
func newReplayCommand(opts *Options) *cobra.Command {
	var (
		eventType  string
		since      string
		limit      int
		deliveryID string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-ingest recorded webhook deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			ctx := cmd.Context()

			filter := driven.EventFilter{EventType: eventType, Limit: limit}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				filter.Since = t
			}

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var events []model.IngestedEvent
			if deliveryID != "" {
				ev, err := a.Events.Get(ctx, deliveryID)
				if err != nil {
					return err
				}
				if ev == nil {
					return fmt.Errorf("delivery %s not found", deliveryID)
				}
				events = append(events, *ev)
			} else {
				events, err = a.Events.List(ctx, filter)
				if err != nil {
					return err
				}
			}

			var errs []error
			for _, ev := range events {
				if err := a.Ingest.Ingest(ctx, ev); err != nil {
					errs = append(errs, err)
				}
			}

			logger.Info("replay complete", "events", len(events), "failed", len(errs))
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events, %d failed\n", len(events), len(errs)); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Only replay this event type")
	cmd.Flags().StringVar(&since, "since", "", "Only replay deliveries received at or after this RFC 3339 time")
	cmd.Flags().IntVar(&limit, "limit", 0, "Replay at most this many deliveries")
	cmd.Flags().StringVar(&deliveryID, "delivery", "", "Replay a single delivery by id")
	cmd.MarkFlagsMutuallyExclusive("delivery", "type")

	return cmd
}

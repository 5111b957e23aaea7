package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// EventFilter narrows an audit log listing. Zero values match everything.
type EventFilter struct {
	EventType string
	Since     time.Time
	Limit     int
}

// EventStore defines the driven port for the webhook audit log.
type EventStore interface {
	// Record inserts the event unless a row with the same delivery ID exists.
	// It reports whether the row was newly inserted.
	Record(ctx context.Context, event model.IngestedEvent) (bool, error)
	Get(ctx context.Context, deliveryID string) (*model.IngestedEvent, error)
	List(ctx context.Context, filter EventFilter) ([]model.IngestedEvent, error)
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// Handler processes one webhook delivery.
type Handler func(ctx context.Context, env model.Envelope) error

// EventKey identifies a handler registration. An empty Action registers a
// handler for every action of the type.
type EventKey struct {
	Type   string
	Action string
}

// String renders the key as "type" or "type.action".
func (k EventKey) String() string {
	if k.Action == "" {
		return k.Type
	}
	return k.Type + "." + k.Action
}

// Router dispatches deliveries to the most specific registered handler:
// type+action first, then the bare type. Deliveries matching neither are
// logged and dropped.
type Router struct {
	handlers map[EventKey]Handler
	metrics  Metrics
}

// NewRouter creates a Router with no handlers. metrics may be nil.
func NewRouter(metrics Metrics) *Router {
	return &Router{
		handlers: make(map[EventKey]Handler),
		metrics:  metricsOrNop(metrics),
	}
}

// Register adds a handler for eventType, or for one action of it when action
// is non-empty. It panics on an empty type or a duplicate key, both of which
// are wiring mistakes.
func (r *Router) Register(eventType, action string, h Handler) {
	if eventType == "" {
		panic("application: handler registered without an event type")
	}
	if h == nil {
		panic(fmt.Sprintf("application: nil handler for %s", EventKey{eventType, action}))
	}

	key := EventKey{Type: eventType, Action: action}
	if _, dup := r.handlers[key]; dup {
		panic(fmt.Sprintf("application: duplicate handler for %s", key))
	}
	r.handlers[key] = h
}

// Lookup resolves the handler for a delivery and the key it was registered under.
func (r *Router) Lookup(eventType, action string) (Handler, EventKey, bool) {
	if action != "" {
		key := EventKey{Type: eventType, Action: action}
		if h, ok := r.handlers[key]; ok {
			return h, key, true
		}
	}

	key := EventKey{Type: eventType}
	if h, ok := r.handlers[key]; ok {
		return h, key, true
	}

	return nil, EventKey{}, false
}

// Route invokes exactly one handler for env. An unmatched delivery is not an
// error. A handler error is returned wrapped with the matched key.
func (r *Router) Route(ctx context.Context, env model.Envelope) error {
	h, key, ok := r.Lookup(env.EventType, env.Action)
	if !ok {
		slog.Info("No handler found for "+env.Key(), "delivery_id", env.DeliveryID)
		r.metrics.EventUnhandled(env.Key())
		return nil
	}

	r.metrics.EventRouted(key.String())

	if err := h(ctx, env); err != nil {
		return fmt.Errorf("handle %s: %w", key, err)
	}

	return nil
}

// Keys returns the registered keys in sorted order.
func (r *Router) Keys() []EventKey {
	keys := make([]EventKey, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

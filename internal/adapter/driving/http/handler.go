// Package httphandler is the HTTP driving adapter: the GitHub webhook front
// door, a read-only view of the delivery audit log, health and metrics.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// maxPayloadBytes matches GitHub's cap on webhook payloads.
const maxPayloadBytes = 25 << 20

// Dispatcher hands a recorded delivery to the ingestion core. It must not
// block on ingestion.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.IngestedEvent)
}

// ReceiptCounter counts accepted deliveries. May be nil.
type ReceiptCounter interface {
	EventReceived(key string)
}

// Handler is the HTTP driving adapter.
type Handler struct {
	events   driven.EventStore
	ingest   Dispatcher
	secret   []byte
	receipts ReceiptCounter
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	events driven.EventStore,
	ingest Dispatcher,
	secret []byte,
	receipts ReceiptCounter,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		events:   events,
		ingest:   ingest,
		secret:   secret,
		receipts: receipts,
		logger:   logger,
		now:      time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. metrics may be nil.
func NewServeMux(h *Handler, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/github", h.ReceiveWebhook)
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/events/{delivery_id}", h.GetEvent)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// deliveryHeader is the subset of every webhook payload the audit row keeps.
type deliveryHeader struct {
	Action       string `json:"action"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Organization struct {
		Login string `json:"login"`
	} `json:"organization"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// ReceiveWebhook verifies and records a delivery, acknowledges it, then
// dispatches it for ingestion. Ingestion outcome never changes the response;
// only a failed audit write does, so that GitHub redelivers.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)

	payload, err := gh.ValidatePayload(r, h.secret)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		h.logger.Warn("rejected webhook delivery", "delivery_id", gh.DeliveryID(r), "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	eventType := gh.WebHookType(r)
	deliveryID := gh.DeliveryID(r)
	if eventType == "" || deliveryID == "" {
		writeError(w, http.StatusBadRequest, "missing X-GitHub-Event or X-GitHub-Delivery header")
		return
	}

	var hdr deliveryHeader
	if err := json.Unmarshal(payload, &hdr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	ev := model.IngestedEvent{
		DeliveryID:     deliveryID,
		EventType:      eventType,
		Action:         hdr.Action,
		InstallationID: hdr.Installation.ID,
		OrgLogin:       hdr.Organization.Login,
		RepoFullName:   hdr.Repository.FullName,
		Content:        json.RawMessage(payload),
		ReceivedAt:     h.now().UTC(),
	}

	inserted, err := h.events.Record(r.Context(), ev)
	if err != nil {
		h.logger.Error("failed to record webhook delivery", "delivery_id", deliveryID, "event", eventType, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !inserted {
		h.logger.Info("duplicate webhook delivery ignored", "delivery_id", deliveryID, "event", eventType)
		writeJSON(w, http.StatusAccepted, AckResponse{DeliveryID: deliveryID, Status: "duplicate"})
		return
	}

	if h.receipts != nil {
		h.receipts.EventReceived(ev.Envelope().Key())
	}

	writeJSON(w, http.StatusAccepted, AckResponse{DeliveryID: deliveryID, Status: "accepted"})

	h.ingest.Dispatch(r.Context(), ev)
}

// ListEvents returns audit rows, oldest first. Supports ?type=, ?since=
// (RFC 3339) and ?limit=.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := driven.EventFilter{EventType: q.Get("type")}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since: expected RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, toEventResponse(ev, false))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetEvent returns one audit row including its raw payload.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	deliveryID := r.PathValue("delivery_id")

	ev, err := h.events.Get(r.Context(), deliveryID)
	if err != nil {
		h.logger.Error("failed to get event", "delivery_id", deliveryID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if ev == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(*ev, true))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	})
}

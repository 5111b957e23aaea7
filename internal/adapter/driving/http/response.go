package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AckResponse acknowledges a webhook delivery.
type AckResponse struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

// EventResponse is the JSON representation of an audit row.
type EventResponse struct {
	DeliveryID     string          `json:"delivery_id"`
	EventType      string          `json:"event_type"`
	Action         string          `json:"action,omitempty"`
	InstallationID int64           `json:"installation_id,omitempty"`
	OrgLogin       string          `json:"org_login,omitempty"`
	RepoFullName   string          `json:"repo_full_name,omitempty"`
	ReceivedAt     string          `json:"received_at"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toEventResponse converts an audit row. The payload is only included on the
// single-event endpoint.
func toEventResponse(ev model.IngestedEvent, withPayload bool) EventResponse {
	resp := EventResponse{
		DeliveryID:     ev.DeliveryID,
		EventType:      ev.EventType,
		Action:         ev.Action,
		InstallationID: ev.InstallationID,
		OrgLogin:       ev.OrgLogin,
		RepoFullName:   ev.RepoFullName,
		ReceivedAt:     ev.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}
	if withPayload {
		resp.Payload = ev.Content
	}
	return resp
}

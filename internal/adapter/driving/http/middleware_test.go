package httphandler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", nil)
	req.Header.Set("X-GitHub-Delivery", "d-1")
	req.Header.Set("X-GitHub-Event", "push")

	rec := httptest.NewRecorder()
	loggingMiddleware(logger, recoveryMiddleware(logger, panicky)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "delivery_id=d-1")
	assert.Contains(t, buf.String(), "status=500")
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestRecoveryMiddleware_StatusAlreadySent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	partial := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("after write")
	})

	rec := httptest.NewRecorder()
	loggingMiddleware(logger, recoveryMiddleware(logger, partial)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/github", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "status=202")
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
	}{
		{name: "webhook accepted", path: "/webhooks/github", status: http.StatusAccepted, level: "level=INFO"},
		{name: "bad signature", path: "/webhooks/github", status: http.StatusUnauthorized, level: "level=WARN"},
		{name: "health poll", path: "/api/v1/health", status: http.StatusOK, level: "level=DEBUG"},
		{name: "health failing", path: "/api/v1/health", status: http.StatusServiceUnavailable, level: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("ok"))
			})

			rec := httptest.NewRecorder()
			loggingMiddleware(newBufferLogger(&buf), handler).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), "bytes=2")
			assert.NotContains(t, buf.String(), "delivery_id", "only webhook deliveries carry a delivery id")
		})
	}
}

func TestLoggingMiddleware_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("hello"))
	})

	rec := httptest.NewRecorder()
	loggingMiddleware(newBufferLogger(&buf), handler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "status=200")
	assert.Contains(t, buf.String(), "bytes=5")
}

package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gh "github.com/google/go-github/v82/github"
)

// statusWriter records the status and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (sw *statusWriter) WriteHeader(status int) {
	if sw.status == 0 {
		sw.status = status
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.written += int64(n)
	return n, err
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// committed reports whether the response status has been sent.
func (sw *statusWriter) committed() bool {
	return sw.status != 0
}

// requestAttrs identifies a request in log records. Webhook deliveries also
// carry their GitHub delivery ID and event type.
func requestAttrs(r *http.Request) []any {
	attrs := []any{"method", r.Method, "path", r.URL.Path}
	if id := gh.DeliveryID(r); id != "" {
		attrs = append(attrs, "delivery_id", id)
	}
	if event := gh.WebHookType(r); event != "" {
		attrs = append(attrs, "event", event)
	}
	return attrs
}

// quietPath reports whether a path is polled often enough that its successful
// requests are only logged at debug level.
func quietPath(path string) bool {
	return path == "/api/v1/health" || path == "/metrics"
}

// loggingMiddleware logs each request once it completes. Server errors log at
// error level, client errors at warn, and successful polls at debug.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case quietPath(r.URL.Path):
			level = slog.LevelDebug
		}

		attrs := append(requestAttrs(r),
			"status", status,
			"bytes", sw.written,
			"duration", time.Since(start).Round(time.Microsecond),
		)
		logger.Log(context.WithoutCancel(r.Context()), level, "http request", attrs...)
	})
}

// recoveryMiddleware turns a handler panic into a 500 response. When the
// handler already sent its status, the response is left as is.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			logger.Error("panic recovered", append(requestAttrs(r), "panic", v)...)

			if sw, ok := w.(*statusWriter); ok && sw.committed() {
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

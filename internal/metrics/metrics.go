// Package metrics exposes ingestion counters to Prometheus.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// Recorder holds the mirror's collectors. It satisfies application.Metrics.
type Recorder struct {
	eventsReceived  *prometheus.CounterVec
	eventsRouted    *prometheus.CounterVec
	eventsUnhandled *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	backfillTasks   *prometheus.CounterVec
	rowsUpserted    *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg. Each
// Recorder needs its own registry; registering twice on one panics.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitmirror",
			Name:      "webhook_events_received_total",
			Help:      "Webhook deliveries accepted by the front door, by event key",
		}, []string{"event"}),
		eventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitmirror",
			Name:      "events_routed_total",
			Help:      "Deliveries dispatched to a handler, by matched handler key",
		}, []string{"handler"}),
		eventsUnhandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitmirror",
			Name:      "events_unhandled_total",
			Help:      "Deliveries with no registered handler, by event type",
		}, []string{"event_type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitmirror",
			Name:      "handler_failures_total",
			Help:      "Deliveries whose handler returned an error, by event key",
		}, []string{"event"}),
		backfillTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitmirror",
			Name:      "backfill_tasks_total",
			Help:      "Settled backfill tasks, by task kind and result",
		}, []string{"kind", "result"}),
		rowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitmirror",
			Name:      "rows_upserted_total",
			Help:      "Rows written by upserts, by entity kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		r.eventsReceived,
		r.eventsRouted,
		r.eventsUnhandled,
		r.handlerFailures,
		r.backfillTasks,
		r.rowsUpserted,
	)

	return r
}

// EventReceived counts a delivery accepted by the webhook endpoint.
func (r *Recorder) EventReceived(key string) {
	r.eventsReceived.WithLabelValues(key).Inc()
}

// EventRouted counts a delivery dispatched under the given handler key.
func (r *Recorder) EventRouted(key string) {
	r.eventsRouted.WithLabelValues(key).Inc()
}

// EventUnhandled counts a delivery with no handler. Only the event type is
// used as a label since actions are unbounded.
func (r *Recorder) EventUnhandled(key string) {
	eventType, _, _ := strings.Cut(key, ".")
	r.eventsUnhandled.WithLabelValues(eventType).Inc()
}

// HandlerFailed counts a delivery whose handler failed.
func (r *Recorder) HandlerFailed(key string) {
	r.handlerFailures.WithLabelValues(key).Inc()
}

// BackfillTask counts a settled backfill task. Task names look like
// "pull requests octo/foo"; the label keeps only the kind.
func (r *Recorder) BackfillTask(task string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.backfillTasks.WithLabelValues(taskKind(task), result).Inc()
}

// RowsUpserted counts rows written for an entity kind.
func (r *Recorder) RowsUpserted(kind model.EntityKind, n int) {
	if n <= 0 {
		return
	}
	r.rowsUpserted.WithLabelValues(string(kind)).Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// taskKinds are the task name prefixes the backfill uses. The subject that
// follows (a repository, pull request or login) is unbounded and never a label.
var taskKinds = []string{
	"account",
	"client",
	"repository",
	"pull requests",
	"issues",
	"members",
	"reviews",
	"review comments",
	"issue comments",
}

func taskKind(task string) string {
	for _, kind := range taskKinds {
		if strings.HasPrefix(task, kind+" ") {
			return strings.ReplaceAll(kind, " ", "_")
		}
	}
	return "other"
}

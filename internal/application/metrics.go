package application

import "github.com/ericfisherdev/gitmirror/internal/domain/model"

// Metrics receives ingestion signals. The Prometheus recorder in
// internal/metrics implements it; tests use nopMetrics or a recording fake.
type Metrics interface {
	EventRouted(key string)
	EventUnhandled(key string)
	HandlerFailed(key string)
	BackfillTask(task string, err error)
	RowsUpserted(kind model.EntityKind, n int)
}

type nopMetrics struct{}

func (nopMetrics) EventRouted(string)                 {}
func (nopMetrics) EventUnhandled(string)              {}
func (nopMetrics) HandlerFailed(string)               {}
func (nopMetrics) BackfillTask(string, error)         {}
func (nopMetrics) RowsUpserted(model.EntityKind, int) {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

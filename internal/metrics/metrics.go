// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline and the read API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors, registered on a private registry so tests can
// create isolated instances.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesCreated prometheus.Counter
	MessagesUpdated prometheus.Counter
	RecordsSkipped  *prometheus.CounterVec
	IngestRuns      prometheus.Counter
	IngestFailures  *prometheus.CounterVec
	ResolveRequests prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		Registry: reg,
		MessagesCreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitradio",
			Name:      "messages_created_total",
			Help:      "Messages inserted by the ingestion engine.",
		}),
		MessagesUpdated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitradio",
			Name:      "messages_updated_total",
			Help:      "Existing messages updated in place by the ingestion engine.",
		}),
		RecordsSkipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitradio",
			Name:      "records_skipped_total",
			Help:      "Raw records skipped during ingestion, by reason.",
		}, []string{"reason"}),
		IngestRuns: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitradio",
			Name:      "ingest_runs_total",
			Help:      "Ingestion calls, successful or not.",
		}),
		IngestFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitradio",
			Name:      "ingest_failures_total",
			Help:      "Failed ingestion calls, by failure kind.",
		}, []string{"kind"}),
		ResolveRequests: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitradio",
			Name:      "resolve_requests_total",
			Help:      "State resolver queries served.",
		}),
	}
}

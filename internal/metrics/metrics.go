// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters.
type Metrics struct {
	PagesFetched  prometheus.Counter
	LinksImported prometheus.Counter
	RateLimitHits prometheus.Counter
	JobsFinalized prometheus.Counter
	ImportErrors  prometheus.Counter
}

// New creates the pipeline metrics registered against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "link_importer_pages_fetched_total",
			Help: "Provider pages fetched across all import jobs.",
		}),
		LinksImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "link_importer_links_imported_total",
			Help: "Links actually inserted (duplicates skipped are not counted).",
		}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "link_importer_rate_limit_hits_total",
			Help: "Invocations rejected by the provider rate limit before any progress.",
		}),
		JobsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "link_importer_jobs_finalized_total",
			Help: "Import jobs that reached their terminal page.",
		}),
		ImportErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "link_importer_errors_total",
			Help: "Import invocations that failed before scheduling a successor.",
		}),
	}
}

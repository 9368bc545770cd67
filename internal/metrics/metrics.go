// Package metrics exposes Prometheus counters and histograms for search,
// ingestion and chat. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docqa"

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	searches         *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	degradations     *prometheus.CounterVec
	fragmentsIndexed prometheus.Counter
	fragmentsSkipped prometheus.Counter
	ingestDuration   prometheus.Histogram
	chatReplies      *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by outcome status.",
		}, []string{"status"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradations_total",
			Help:      "Fallbacks taken, by component.",
		}, []string{"component"}),
		fragmentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_indexed_total",
			Help:      "Fragments written to the vector store.",
		}),
		fragmentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_skipped_total",
			Help:      "Fragments dropped because embedding failed.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		chatReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_replies_total",
			Help:      "Chat replies by detected intent.",
		}, []string{"intent"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searches, m.searchDuration, m.degradations,
		m.fragmentsIndexed, m.fragmentsSkipped, m.ingestDuration,
		m.chatReplies,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records a finished search
func (m *Metrics) ObserveSearch(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(status).Inc()
	m.searchDuration.Observe(d.Seconds())
}

// Degradation counts a fallback taken by component
func (m *Metrics) Degradation(component string) {
	if m == nil {
		return
	}
	m.degradations.WithLabelValues(component).Inc()
}

// ObserveIngest records an ingestion run
func (m *Metrics) ObserveIngest(indexed, skipped int, d time.Duration) {
	if m == nil {
		return
	}
	m.fragmentsIndexed.Add(float64(indexed))
	m.fragmentsSkipped.Add(float64(skipped))
	m.ingestDuration.Observe(d.Seconds())
}

// ChatReply counts a reply by intent
func (m *Metrics) ChatReply(intent string) {
	if m == nil {
		return
	}
	m.chatReplies.WithLabelValues(intent).Inc()
}

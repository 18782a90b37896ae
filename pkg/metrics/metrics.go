// Package metrics owns the Prometheus registry for a reposcope server.
//
// A Registry is created once by the server constructor and handed to the
// components that record into it. Every recording method is safe on a nil
// *Registry, so components built without metrics need no special casing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reposcope"

// Registry holds every reposcope collector.
type Registry struct {
	reg *prometheus.Registry

	apiRequests       *prometheus.CounterVec
	apiLatency        *prometheus.HistogramVec
	ingestRuns        *prometheus.CounterVec
	chunksIndexed     prometheus.Counter
	embeddingFailures *prometheus.CounterVec
	streamSessions    *prometheus.CounterVec
	queryLatency      prometheus.Histogram
	rateLimited       prometheus.Counter
	start             time.Time
}

// New creates a Registry with Go runtime and process collectors registered.
func New() *Registry {
	r := &Registry{
		reg:   prometheus.NewRegistry(),
		start: time.Now(),

		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by route, method and status code.",
		}, []string{"route", "method", "status"}),

		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion pipeline runs by outcome.",
		}, []string{"outcome"}),

		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks stored in the embedding index.",
		}),

		embeddingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Embedding failures by stage (ingest or query).",
		}, []string{"stage"}),

		streamSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_sessions_total",
			Help:      "Answer streaming sessions by terminal state.",
		}, []string{"outcome"}),

		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time from question to synthesized answer.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.apiRequests,
		r.apiLatency,
		r.ingestRuns,
		r.chunksIndexed,
		r.embeddingFailures,
		r.streamSessions,
		r.queryLatency,
		r.rateLimited,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Uptime returns the time since the registry was created.
func (r *Registry) Uptime() time.Duration {
	if r == nil {
		return 0
	}
	return time.Since(r.start)
}

// ObserveRequest records one API call.
func (r *Registry) ObserveRequest(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.apiRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.apiLatency.WithLabelValues(route).Observe(d.Seconds())
}

// IngestFinished records an ingestion run outcome ("ready" or "error").
func (r *Registry) IngestFinished(outcome string) {
	if r == nil {
		return
	}
	r.ingestRuns.WithLabelValues(outcome).Inc()
}

// ChunksIndexed adds n stored chunks.
func (r *Registry) ChunksIndexed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.chunksIndexed.Add(float64(n))
}

// EmbeddingFailed records an embedding failure at stage.
func (r *Registry) EmbeddingFailed(stage string) {
	if r == nil {
		return
	}
	r.embeddingFailures.WithLabelValues(stage).Inc()
}

// StreamFinished records a streaming session's terminal state.
func (r *Registry) StreamFinished(outcome string) {
	if r == nil {
		return
	}
	r.streamSessions.WithLabelValues(outcome).Inc()
}

// ObserveQuery records the latency of one answered question.
func (r *Registry) ObserveQuery(d time.Duration) {
	if r == nil {
		return
	}
	r.queryLatency.Observe(d.Seconds())
}

// RateLimited records a rejected request.
func (r *Registry) RateLimited() {
	if r == nil {
		return
	}
	r.rateLimited.Inc()
}

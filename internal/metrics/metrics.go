// Package metrics exposes the Prometheus collectors for the service on a
// dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "debtdesk",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debtdesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "debtdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	repoOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debtdesk",
			Subsystem: "repo",
			Name:      "operations_total",
			Help:      "Total repository operations against the hosted store.",
		},
		[]string{"repository", "operation", "success"},
	)

	receiptUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debtdesk",
			Subsystem: "storage",
			Name:      "uploads_total",
			Help:      "Total storage uploads by bucket and outcome.",
		},
		[]string{"bucket", "success"},
	)

	requestDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debtdesk",
			Subsystem: "requests",
			Name:      "decisions_total",
			Help:      "Total payment request decisions.",
		},
		[]string{"decision"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		repoOperations,
		receiptUploads,
		requestDecisions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordRepoOperation records a repository round trip against the store.
func RecordRepoOperation(repository, operation string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	repoOperations.WithLabelValues(repository, operation, success).Inc()
}

// RecordUpload records a storage upload outcome.
func RecordUpload(bucket string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	receiptUploads.WithLabelValues(bucket, success).Inc()
}

// RecordDecision records an approve/reject decision on a payment request.
func RecordDecision(decision string) {
	requestDecisions.WithLabelValues(decision).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource IDs so the path label stays low
// cardinality: /api/debts/123 -> /api/debts/:id,
// /api/requests/123/approve -> /api/requests/:id/approve.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" {
		return "/" + parts[0]
	}
	if len(parts) < 3 {
		return "/" + strings.Join(parts, "/")
	}
	out := []string{"api", parts[1], ":id"}
	if len(parts) > 3 {
		out = append(out, parts[3:]...)
	}
	return "/" + strings.Join(out, "/")
}

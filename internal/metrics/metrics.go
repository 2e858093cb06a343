// Package metrics provides Prometheus metrics for the repoview viewer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch kinds used as label values.
const (
	KindListing  = "listing"
	KindFile     = "file"
	KindRendered = "rendered"
)

var (
	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_cache_lookups_total",
			Help: "Content cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Remote API metrics
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_remote_requests_total",
			Help: "Requests issued to the remote content API",
		},
		[]string{"kind", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repoview_remote_request_duration_seconds",
			Help:    "Remote content API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	remoteBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_remote_bytes_total",
			Help: "Bytes received from the remote content API",
		},
		[]string{"kind"},
	)

	// Tree metrics
	treeMaterializedNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "repoview_tree_materialized_nodes",
			Help: "Number of materialized tree nodes per repository",
		},
		[]string{"repository"},
	)

	treeExpansionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_tree_expansions_total",
			Help: "Directory expansions by outcome",
		},
		[]string{"outcome"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_http_requests_total",
			Help: "Total number of viewer HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// RecordRemoteRequest records one remote request. A status of 0 means the
// request failed before a response arrived.
func RecordRemoteRequest(kind string, status int, bytes int, duration time.Duration) {
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	remoteRequestsTotal.WithLabelValues(kind, statusLabel).Inc()
	remoteRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if bytes > 0 {
		remoteBytesTotal.WithLabelValues(kind).Add(float64(bytes))
	}
}

// SetMaterializedNodes sets the materialized node gauge of repository.
func SetMaterializedNodes(repository string, count int) {
	treeMaterializedNodes.WithLabelValues(repository).Set(float64(count))
}

// RecordExpansion counts an expansion with outcome fetched, toggled or failed.
func RecordExpansion(outcome string) {
	treeExpansionsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an HTTP handler with request counting.
func Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		wrapped := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
		next.ServeHTTP(wrapped, request)
		httpRequestsTotal.WithLabelValues(request.Method, path, strconv.Itoa(wrapped.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(status int) {
	recorder.status = status
	recorder.ResponseWriter.WriteHeader(status)
}

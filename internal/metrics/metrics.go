// Package metrics provides Prometheus metrics for the metadata-remote server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Catalog metrics
	catalogNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mdr_catalog_nodes",
			Help: "Number of files and folders in the catalog tree",
		},
	)

	catalogLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mdr_catalog_load_duration_seconds",
			Help:    "Time to load the catalog tree from persistence",
			Buckets: prometheus.DefBuckets,
		},
	)

	catalogOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_catalog_operations_total",
			Help: "Total catalog mutations by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	// Storage backend metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdr_storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_storage_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdr_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// Event stream metrics
	sseClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mdr_sse_clients",
			Help: "Number of connected change-feed subscribers",
		},
	)

	// Browser engine metrics
	staleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_browser_stale_responses_total",
			Help: "Responses discarded because a newer request superseded them",
		},
		[]string{"slot"},
	)

	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_browser_transfers_total",
			Help: "Move and rename transfers by outcome",
		},
		[]string{"outcome"},
	)

	bulkOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_browser_bulk_operations_total",
			Help: "Bulk operation runs by result",
		},
		[]string{"result"},
	)

	// Importer metrics
	importedNodesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mdr_imported_nodes_total",
			Help: "Nodes added to the catalog by the importer",
		},
	)

	watchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdr_watch_events_total",
			Help: "Filesystem watch events by type",
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetCatalogNodes sets the current catalog tree size.
func SetCatalogNodes(size int) {
	catalogNodes.Set(float64(size))
}

// RecordCatalogLoad records the duration of a catalog load.
func RecordCatalogLoad(duration time.Duration) {
	catalogLoadDuration.Observe(duration.Seconds())
}

// RecordCatalogOperation records a catalog mutation.
func RecordCatalogOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	catalogOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordStorageOperation records a storage backend operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// AddSSEClient adjusts the connected subscriber gauge.
func AddSSEClient(delta int) {
	sseClients.Add(float64(delta))
}

// RecordStaleResponse records a discarded out-of-date response.
func RecordStaleResponse(slot string) {
	staleResponsesTotal.WithLabelValues(slot).Inc()
}

// RecordTransfer records a move or rename transfer outcome.
func RecordTransfer(outcome string) {
	transfersTotal.WithLabelValues(outcome).Inc()
}

// RecordBulkOperation records a bulk operation run.
func RecordBulkOperation(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	bulkOperationsTotal.WithLabelValues(result).Inc()
}

// RecordImportedNodes counts nodes added by the importer.
func RecordImportedNodes(n int) {
	importedNodesTotal.Add(float64(n))
}

// RecordWatchEvent records a filesystem watch event.
func RecordWatchEvent(eventType string) {
	watchEventsTotal.WithLabelValues(eventType).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

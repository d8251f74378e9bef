package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the membership import pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	importBatches   *prometheus.CounterVec
	importRows      prometheus.Counter
	importErrors    prometheus.Counter
	membersCreated  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	importBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_import_batches_total",
		Help: "Total membership import batches by result",
	}, []string{"result"})

	importRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "membership_import_rows_total",
		Help: "Total data rows processed by membership imports",
	})

	importErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "membership_import_errors_total",
		Help: "Total validation and commit errors reported by imports",
	})

	membersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "team_memberships_created_total",
		Help: "Total team memberships created by imports",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, importBatches, importRows, importErrors, membersCreated, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		importBatches:   importBatches,
		importRows:      importRows,
		importErrors:    importErrors,
		membersCreated:  membersCreated,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveImport records the outcome of one import batch.
func (m *MetricsService) ObserveImport(success bool, rows, errors, created int) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "succeeded"
	}
	m.importBatches.WithLabelValues(result).Inc()
	if rows > 0 {
		m.importRows.Add(float64(rows))
	}
	if errors > 0 {
		m.importErrors.Add(float64(errors))
	}
	if created > 0 {
		m.membersCreated.Add(float64(created))
	}
}

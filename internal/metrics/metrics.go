// Package metrics provides Prometheus metrics for filedrive object store traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the Prometheus registry for all filedrive metrics.
var Registry = prometheus.NewRegistry()

func init() {
	// Register standard Go metrics
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// StoreMetrics holds the Prometheus metrics for calls made to the object store.
type StoreMetrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec   // filedrive_store_requests_total{operation,status}
	RequestDuration *prometheus.HistogramVec // filedrive_store_request_duration_seconds{operation}

	// Transfer metrics
	BytesUploaded   prometheus.Counter // filedrive_store_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // filedrive_store_bytes_downloaded_total

	// Keys removed through single and batch deletes
	KeysDeleted prometheus.Counter // filedrive_store_keys_deleted_total
}

// NewStoreMetrics registers the store metrics with registry. A nil registry
// means the package Registry.
func NewStoreMetrics(registry prometheus.Registerer) *StoreMetrics {
	if registry == nil {
		registry = Registry
	}
	return &StoreMetrics{
		RequestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "filedrive_store_requests_total",
			Help: "Total object store requests by operation and status",
		}, []string{"operation", "status"}),

		RequestDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "filedrive_store_request_duration_seconds",
			Help:    "Object store request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		BytesUploaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "filedrive_store_bytes_uploaded_total",
			Help: "Total bytes written to the object store",
		}),

		BytesDownloaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "filedrive_store_bytes_downloaded_total",
			Help: "Total bytes read from the object store",
		}),

		KeysDeleted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "filedrive_store_keys_deleted_total",
			Help: "Total keys removed from the object store",
		}),
	}
}

// RecordRequest records one completed request.
func (m *StoreMetrics) RecordRequest(operation, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// WriteTextfile writes the package Registry in the text exposition format to
// path, for the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

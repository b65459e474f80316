package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the gateway and archive
// streamer. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Gateway operations
	OperationsTotal   *prometheus.CounterVec   // tutorstore_gateway_operations_total{operation,status}
	OperationDuration *prometheus.HistogramVec // tutorstore_gateway_operation_duration_seconds{operation}
	BytesUploaded     prometheus.Counter       // tutorstore_gateway_bytes_uploaded_total

	// Archive streaming
	ArchiveEntries *prometheus.CounterVec // tutorstore_archive_entries_total{result}
	ArchiveBytes   prometheus.Counter     // tutorstore_archive_source_bytes_total
}

// New registers all collectors on registry, or on the default registerer
// when registry is nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorstore_gateway_operations_total",
			Help: "Object store gateway operations by operation and status",
		}, []string{"operation", "status"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutorstore_gateway_operation_duration_seconds",
			Help:    "Object store gateway operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "tutorstore_gateway_bytes_uploaded_total",
			Help: "Total bytes written to the object store through the proxy upload path",
		}),

		ArchiveEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorstore_archive_entries_total",
			Help: "Archive entries by result (added or skipped)",
		}, []string{"result"}),

		ArchiveBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tutorstore_archive_source_bytes_total",
			Help: "Total bytes fetched from the object store into archives",
		}),
	}
}

// RecordOperation records one gateway operation.
func (m *Metrics) RecordOperation(operation string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordUpload records bytes written by a proxied upload.
func (m *Metrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.BytesUploaded.Add(float64(bytes))
}

// RecordArchiveEntry records one attempted archive entry.
func (m *Metrics) RecordArchiveEntry(added bool, bytes int64) {
	if m == nil {
		return
	}
	if !added {
		m.ArchiveEntries.WithLabelValues("skipped").Inc()
		return
	}
	m.ArchiveEntries.WithLabelValues("added").Inc()
	m.ArchiveBytes.Add(float64(bytes))
}

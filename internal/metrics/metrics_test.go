package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordOperation("delete", nil, 0.01)
	m.RecordOperation("delete", errors.New("boom"), 0.02)
	m.RecordOperation("delete", nil, 0.01)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("delete", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("delete", "error")))
}

func TestRecordArchiveEntry(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordArchiveEntry(true, 100)
	m.RecordArchiveEntry(false, 0)
	m.RecordArchiveEntry(true, 50)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ArchiveEntries.WithLabelValues("added")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ArchiveEntries.WithLabelValues("skipped")))
	assert.Equal(t, float64(150), testutil.ToFloat64(m.ArchiveBytes))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordOperation("put", nil, 1)
	m.RecordUpload(10)
	m.RecordArchiveEntry(true, 10)
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPrediction(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPrediction("real", 3, 0.8, 0.25)
	m.RecordPrediction("real", 1, 0.7, 0.1)
	m.RecordPrediction("fake", 2, 0.2, 0.1)
	m.RecordPredictionFailure("decode", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("real")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("fake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionFailures.WithLabelValues("decode")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SegmentsPerFile))
}

func TestRecordDatasetFile(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDatasetFile("ok", 0.5)
	m.RecordDatasetFile("ok", 0.5)
	m.RecordDatasetFile("decode_error", 0.1)
	m.SetDatasetQueueSize(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatasetFiles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetFiles.WithLabelValues("decode_error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.DatasetQueueSize))
}

func TestRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordHTTPRequest("GET", "/health", "200", 0.001)
	m.RecordHTTPError("POST", "/api/predict", "bad_request")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["audiva_http_requests_total"])
	assert.True(t, names["audiva_http_errors_total"])

	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration must fail")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPrediction("real", 1, 0.9, 0.1)
		m.RecordPredictionFailure("decode", 0.1)
		m.RecordStage("decode", 0.1)
		m.RecordDatasetFile("ok", 0.1)
		m.SetDatasetQueueSize(1)
		m.RecordHTTPRequest("GET", "/", "200", 0.1)
		m.RecordHTTPError("GET", "/", "x")
	})
}

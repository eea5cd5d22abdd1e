package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for Audiva.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Prediction metrics
	Predictions          *prometheus.CounterVec
	PredictionFailures   *prometheus.CounterVec
	PredictionDuration   prometheus.Histogram
	StageDuration        *prometheus.HistogramVec
	SegmentsPerFile      prometheus.Histogram
	AggregateProbability prometheus.Histogram

	// Dataset building metrics
	DatasetFiles     *prometheus.CounterVec
	DatasetQueueSize prometheus.Gauge
	DatasetBuildTime *prometheus.HistogramVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Prediction metrics
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiva_predictions_total",
			Help: "Total number of files classified, by verdict",
		}, []string{"verdict"}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiva_prediction_failures_total",
			Help: "Total number of files that could not be classified, by reason",
		}, []string{"reason"}),
		PredictionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiva_prediction_duration_seconds",
			Help:    "End-to-end time to classify one file",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiva_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"stage"}),
		SegmentsPerFile: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiva_segments_per_file",
			Help:    "Number of analysis segments per classified file",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
		}),
		AggregateProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiva_aggregate_probability",
			Help:    "Mean probability of real speech per classified file",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Dataset building metrics
		DatasetFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiva_dataset_files_total",
			Help: "Total number of dataset files processed, by outcome",
		}, []string{"outcome"}),
		DatasetQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audiva_dataset_queue_size",
			Help: "Current number of files waiting for a worker",
		}),
		DatasetBuildTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiva_dataset_file_duration_seconds",
			Help:    "Time to decode and extract features for one dataset file",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"outcome"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiva_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiva_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiva_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPrediction records a successfully classified file
func (m *Metrics) RecordPrediction(verdict string, segments int, probability, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(verdict).Inc()
	m.SegmentsPerFile.Observe(float64(segments))
	m.AggregateProbability.Observe(probability)
	m.PredictionDuration.Observe(durationSeconds)
}

// RecordPredictionFailure records a file that could not be classified
func (m *Metrics) RecordPredictionFailure(reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PredictionFailures.WithLabelValues(reason).Inc()
	m.PredictionDuration.Observe(durationSeconds)
}

// RecordStage records the time spent in one pipeline stage
func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordDatasetFile records one processed dataset file
func (m *Metrics) RecordDatasetFile(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.DatasetFiles.WithLabelValues(outcome).Inc()
	m.DatasetBuildTime.WithLabelValues(outcome).Observe(durationSeconds)
}

// SetDatasetQueueSize sets the number of files waiting for a worker
func (m *Metrics) SetDatasetQueueSize(size int) {
	if m == nil {
		return
	}
	m.DatasetQueueSize.Set(float64(size))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnkitChauhan19/Audiva/internal/audio"
	"github.com/AnkitChauhan19/Audiva/internal/config"
	"github.com/AnkitChauhan19/Audiva/internal/metrics"
	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
)

// uploadField is the multipart field carrying the audio file
const uploadField = "audio_file"

//go:embed templates/*
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Predictor classifies a staged audio file. *pipeline.Pipeline implements it.
type Predictor interface {
	Predict(ctx context.Context, path string) (*pipeline.Result, error)
}

// HTTPServer serves the upload form, the JSON prediction API and the
// monitoring endpoints
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	predictor  Predictor
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	version    string
	stagingDir string

	// Server state
	startTime time.Time
	stats     counters
}

type counters struct {
	uploads  atomic.Uint64
	real     atomic.Uint64
	fake     atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

// predictionResponse is the JSON form of a successful prediction
type predictionResponse struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Segments        int       `json:"segments"`
	Probabilities   []float64 `json:"probabilities"`
	Probability     float64   `json:"probability"`
	Percent         float64   `json:"percent"`
	Verdict         string    `json:"verdict"`
	Description     string    `json:"description"`
	Recommendation  string    `json:"recommendation"`
	Threshold       float64   `json:"threshold"`
	DurationSeconds float64   `json:"duration_seconds"`
	ElapsedMS       int64     `json:"elapsed_ms"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type pageData struct {
	Accept      string
	MaxUploadMB int
	Error       string
	Result      *predictionResponse
}

// NewHTTPServer creates the HTTP front end. gatherer backs /metrics and may
// be nil to use the default registry.
func NewHTTPServer(cfg *config.Config, predictor Predictor, m *metrics.Metrics,
	gatherer prometheus.Gatherer, logger *slog.Logger, version string) (*HTTPServer, error) {

	stagingDir := cfg.HTTP.StagingDir
	if stagingDir == "" {
		stagingDir = filepath.Join(os.TempDir(), "audiva")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:     logger,
		config:     cfg,
		predictor:  predictor,
		metrics:    m,
		gatherer:   gatherer,
		version:    version,
		stagingDir: stagingDir,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         cfg.HTTP.ListenAddress(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return h, nil
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Prediction endpoints
	mux.HandleFunc("/api/predict", h.withMetrics("/api/predict", h.handleAPIPredict))

	// Monitoring endpoints
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Upload form and result page
	mux.HandleFunc("/", h.withMetrics("/", h.handleIndex))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
		slog.String("staging_dir", h.stagingDir),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleIndex renders the upload form on GET and classifies the uploaded
// file on POST
func (h *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := pageData{
		Accept:      strings.Join(h.config.Audio.Extensions, ","),
		MaxUploadMB: h.config.HTTP.MaxUploadMB,
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case http.MethodPost:
		resp, status, err := h.predictUpload(w, r)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err != nil {
			w.WriteHeader(status)
			data.Error = pipeline.UserMessage(err)
		} else {
			data.Result = resp
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := indexTmpl.Execute(w, data); err != nil {
		h.logger.Error("Failed to render page", slog.String("error", err.Error()))
	}
}

// handleAPIPredict implements the /api/predict endpoint
func (h *HTTPServer) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, status, err := h.predictUpload(w, r)
	if err != nil {
		writeJSON(w, status, errorResponse{
			Error:   pipeline.FailureReason(err),
			Message: pipeline.UserMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// predictUpload stages the uploaded file under a random name, classifies it
// and removes it. The returned status is meaningful only when err is set.
func (h *HTTPServer) predictUpload(w http.ResponseWriter, r *http.Request) (*predictionResponse, int, error) {
	h.stats.uploads.Add(1)
	id := uuid.NewString()
	logger := h.logger.With(slog.String("request_id", id))

	path, filename, status, err := h.stageUpload(w, r, id)
	if err != nil {
		h.stats.rejected.Add(1)
		logger.Warn("Rejected upload", slog.String("error", err.Error()))
		return nil, status, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove staged upload", slog.String("path", path), slog.String("error", err.Error()))
		}
	}()

	logger.Info("Classifying upload", slog.String("filename", filename))

	result, err := h.predictor.Predict(r.Context(), path)
	if err != nil {
		h.stats.failed.Add(1)
		return nil, statusFor(err), err
	}

	if result.Verdict.IsReal() {
		h.stats.real.Add(1)
	} else {
		h.stats.fake.Add(1)
	}

	return &predictionResponse{
		ID:              id,
		Filename:        filename,
		Segments:        result.Segments,
		Probabilities:   result.Probabilities,
		Probability:     result.Verdict.Probability,
		Percent:         result.Verdict.Percent(),
		Verdict:         result.Verdict.Label.String(),
		Description:     result.Verdict.Label.Description(),
		Recommendation:  result.Verdict.Recommendation(),
		Threshold:       result.Verdict.Threshold,
		DurationSeconds: result.AudioDuration.Seconds(),
		ElapsedMS:       result.Elapsed.Milliseconds(),
	}, http.StatusOK, nil
}

// stageUpload copies the multipart file into the staging directory
func (h *HTTPServer) stageUpload(w http.ResponseWriter, r *http.Request, id string) (path, filename string, status int, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.HTTP.MaxUploadBytes())

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", "", http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MB: %w", h.config.HTTP.MaxUploadMB, err)
		}
		return "", "", http.StatusBadRequest, fmt.Errorf("missing %s field: %w", uploadField, audio.ErrUnsupportedExtension)
	}
	defer file.Close()

	filename = filepath.Base(header.Filename)
	if err := audio.ValidateExtension(filename, h.config.Audio.Extensions); err != nil {
		return "", "", http.StatusBadRequest, err
	}

	path = filepath.Join(h.stagingDir, id+strings.ToLower(filepath.Ext(filename)))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", "", http.StatusInternalServerError, fmt.Errorf("failed to stage upload: %w", err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", "", http.StatusInternalServerError, fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", "", http.StatusInternalServerError, fmt.Errorf("failed to stage upload: %w", err)
	}

	return path, filename, http.StatusOK, nil
}

// statusFor maps a prediction error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, audio.ErrUnsupportedExtension):
		return http.StatusBadRequest
	case errors.Is(err, audio.ErrDecode), errors.Is(err, pipeline.ErrNoSegments):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "audiva",
			"version": h.version,
		},
		"components": map[string]interface{}{
			"classifier": map[string]interface{}{
				"status": "loaded",
				"path":   h.config.Model.ClassifierPath,
			},
			"scaler": map[string]interface{}{
				"status": "loaded",
				"path":   h.config.Model.ScalerPath,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate":      h.config.Audio.SampleRate,
			"segment_duration": h.config.Audio.SegmentDuration,
			"extensions":       h.config.Audio.Extensions,
		},
		"features": map[string]interface{}{
			"n_mfcc":     h.config.Features.NumCoefficients,
			"n_mels":     h.config.Features.NumMels,
			"n_fft":      h.config.Features.FFTSize,
			"hop_length": h.config.Features.HopLength,
			"top_db":     h.config.Features.TopDB,
		},
		"model": map[string]interface{}{
			"format":    h.config.Model.Format,
			"threshold": h.config.Model.Threshold,
		},
		"http": map[string]interface{}{
			"max_upload_mb": h.config.HTTP.MaxUploadMB,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
		},
	}

	writeJSON(w, http.StatusOK, cfg)
}

// Stats is a snapshot of the upload counters
type Stats struct {
	Uploads  uint64 `json:"uploads"`
	Real     uint64 `json:"real"`
	Fake     uint64 `json:"fake"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

// GetStats returns the current upload counters
func (h *HTTPServer) GetStats() Stats {
	return Stats{
		Uploads:  h.stats.uploads.Load(),
		Real:     h.stats.real.Load(),
		Fake:     h.stats.fake.Load(),
		Rejected: h.stats.rejected.Load(),
		Failed:   h.stats.failed.Load(),
	}
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":      time.Since(h.startTime).String(),
		"timestamp":   time.Now().UTC(),
		"predictions": h.GetStats(),
	}

	writeJSON(w, http.StatusOK, stats)
}

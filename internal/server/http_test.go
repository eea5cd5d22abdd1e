package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnkitChauhan19/Audiva/internal/audio"
	"github.com/AnkitChauhan19/Audiva/internal/config"
	"github.com/AnkitChauhan19/Audiva/internal/metrics"
	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

// stubPredictor answers according to the uploaded bytes
type stubPredictor struct {
	mu    sync.Mutex
	paths []string
}

func (s *stubPredictor) Predict(ctx context.Context, path string) (*pipeline.Result, error) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch string(data) {
	case "corrupt":
		return nil, &audio.DecodeError{Path: path, Err: errors.New("bad header")}
	case "short":
		return nil, fmt.Errorf("%w: %s", pipeline.ErrNoSegments, path)
	}

	v, err := verdict.Aggregate([]float64{0.9, 0.7}, 0.5)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{
		Path:          path,
		AudioDuration: 4 * time.Second,
		Segments:      2,
		Probabilities: []float64{0.9, 0.7},
		Verdict:       v,
		Elapsed:       15 * time.Millisecond,
	}, nil
}

func newTestServer(t *testing.T) (*HTTPServer, *stubPredictor, string) {
	t.Helper()

	cfg := config.Default()
	cfg.HTTP.StagingDir = t.TempDir()

	reg := prometheus.NewRegistry()
	predictor := &stubPredictor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h, err := NewHTTPServer(cfg, predictor, metrics.NewMetrics(reg), reg, logger, "test")
	require.NoError(t, err)
	return h, predictor, cfg.HTTP.StagingDir
}

func upload(t *testing.T, target, field, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h *HTTPServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAPIPredict(t *testing.T) {
	h, predictor, staging := newTestServer(t)

	rec := serve(h, upload(t, "/api/predict", uploadField, "Voice Note.WAV", "pcm"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp predictionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Voice Note.WAV", resp.Filename)
	assert.Equal(t, 2, resp.Segments)
	assert.InDelta(t, 0.8, resp.Probability, 1e-12)
	assert.Equal(t, 80.0, resp.Percent)
	assert.Equal(t, "real", resp.Verdict)
	assert.Equal(t, "Real", resp.Description)
	assert.Equal(t, 4.0, resp.DurationSeconds)
	assert.Equal(t, int64(15), resp.ElapsedMS)

	// staged under a random name with the original extension, then removed
	require.Len(t, predictor.paths, 1)
	assert.Equal(t, staging, filepath.Dir(predictor.paths[0]))
	assert.Equal(t, resp.ID+".wav", filepath.Base(predictor.paths[0]))
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, Stats{Uploads: 1, Real: 1}, h.GetStats())
}

func TestAPIPredictErrors(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		content  string
		status   int
		reason   string
		message  string
	}{
		{"bad extension", uploadField, "notes.txt", "text", http.StatusBadRequest, "extension", "Please upload a valid audio file"},
		{"missing field", "other", "clip.wav", "pcm", http.StatusBadRequest, "extension", "Please upload a valid audio file"},
		{"undecodable", uploadField, "clip.mp3", "corrupt", http.StatusUnprocessableEntity, "decode", "Unable to process the input audio."},
		{"too short", uploadField, "clip.flac", "short", http.StatusUnprocessableEntity, "too_short", "too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, staging := newTestServer(t)

			rec := serve(h, upload(t, "/api/predict", tt.field, tt.filename, tt.content))
			assert.Equal(t, tt.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.reason, resp.Error)
			assert.Contains(t, resp.Message, tt.message)

			entries, err := os.ReadDir(staging)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestRejectedUploadNeverReachesPredictor(t *testing.T) {
	h, predictor, _ := newTestServer(t)

	rec := serve(h, upload(t, "/api/predict", uploadField, "archive.zip", "zip"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, predictor.paths)
	assert.Equal(t, Stats{Uploads: 1, Rejected: 1}, h.GetStats())
}

func TestUploadTooLarge(t *testing.T) {
	h, predictor, _ := newTestServer(t)
	h.config.HTTP.MaxUploadMB = 1

	rec := serve(h, upload(t, "/api/predict", uploadField, "big.wav", string(make([]byte, 2<<20))))
	assert.GreaterOrEqual(t, rec.Code, 400)
	assert.Empty(t, predictor.paths)
}

func TestIndexPage(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="audio_file"`)

	rec = serve(h, upload(t, "/", uploadField, "clip.wav", "pcm"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "80.00%")
	assert.Contains(t, rec.Body.String(), "seems genuine")

	rec = serve(h, upload(t, "/", uploadField, "clip.wav", "corrupt"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unable to process the input audio.")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _, _ := newTestServer(t)

	for _, target := range []string{"/api/predict", "/health", "/config", "/stats"} {
		method := http.MethodPut
		if target == "/api/predict" {
			method = http.MethodGet
		}
		rec := serve(h, httptest.NewRequest(method, target, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t)
	serve(h, upload(t, "/api/predict", uploadField, "clip.wav", "pcm"))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"n_mfcc":13`)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uploads":1`)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `audiva_http_requests_total{endpoint="/api/predict",method="POST",status_code="200"} 1`)
}

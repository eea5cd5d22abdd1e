package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Audio    AudioConfig   `yaml:"audio"`
	Features FeatureConfig `yaml:"features"`
	Model    ModelConfig   `yaml:"model"`
	Dataset  DatasetConfig `yaml:"dataset"`
	HTTP     HTTPConfig    `yaml:"http"`
	Logging  LoggingConfig `yaml:"logging"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// AudioConfig contains decoding and segmentation parameters
type AudioConfig struct {
	SampleRate      int      `yaml:"sample_rate"`
	SegmentDuration float64  `yaml:"segment_duration"` // seconds
	Extensions      []string `yaml:"extensions"`
}

// FeatureConfig contains MFCC extraction parameters
type FeatureConfig struct {
	NumCoefficients int     `yaml:"n_mfcc"`
	NumMels         int     `yaml:"n_mels"`
	FFTSize         int     `yaml:"n_fft"`
	HopLength       int     `yaml:"hop_length"`
	TopDB           float64 `yaml:"top_db"`
}

// ModelConfig contains classifier and scaler artifact locations
type ModelConfig struct {
	ClassifierPath string  `yaml:"classifier_path"`
	Format         string  `yaml:"format"` // "json", "quantized" or empty to infer from extension
	ScalerPath     string  `yaml:"scaler_path"`
	Threshold      float64 `yaml:"threshold"`
}

// DatasetConfig contains bulk feature extraction parameters
type DatasetConfig struct {
	TrainDir         string  `yaml:"train_dir"`
	ValidationDir    string  `yaml:"validation_dir"`
	TrainOutput      string  `yaml:"train_output"`
	ValidationOutput string  `yaml:"validation_output"`
	Workers          int     `yaml:"workers"` // 0 means one per CPU
	Seed             int64   `yaml:"seed"`
	TestFraction     float64 `yaml:"test_fraction"`
}

// HTTPConfig contains HTTP front end configuration
type HTTPConfig struct {
	Address     string `yaml:"address"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	StagingDir  string `yaml:"staging_dir"` // empty means os.TempDir()
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	Exporter   string  `yaml:"exporter"` // "none" or "stdout"
	SampleRate float64 `yaml:"sample_rate"`
}

// Default returns the configuration the classifier was trained with.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:      22050,
			SegmentDuration: 2.0,
			Extensions:      []string{".wav", ".mp3", ".flac"},
		},
		Features: FeatureConfig{
			NumCoefficients: 13,
			NumMels:         128,
			FFTSize:         2048,
			HopLength:       512,
			TopDB:           80,
		},
		Model: ModelConfig{
			ClassifierPath: "artifacts/model.json",
			ScalerPath:     "artifacts/scaler.json",
			Threshold:      0.5,
		},
		Dataset: DatasetConfig{
			TrainDir:         "data/for-2seconds/train_test_combined",
			ValidationDir:    "data/for-2seconds/validation",
			TrainOutput:      "artifacts/dataset_data.msgpack.zst",
			ValidationOutput: "artifacts/val_data.msgpack.zst",
			Seed:             42,
			TestFraction:     0.3,
		},
		HTTP: HTTPConfig{
			Address:     "0.0.0.0",
			Port:        8000,
			MaxUploadMB: 32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Exporter:   "none",
			SampleRate: 1.0,
		},
	}
}

// Load reads and parses the configuration file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides selected values from the environment. lookup is
// os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("AUDIVA_CLASSIFIER_PATH"); ok && v != "" {
		c.Model.ClassifierPath = v
	}
	if v, ok := lookup("AUDIVA_SCALER_PATH"); ok && v != "" {
		c.Model.ScalerPath = v
	}
	if v, ok := lookup("AUDIVA_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup("AUDIVA_HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUDIVA_HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Features.Validate(c.Audio.SampleRate); err != nil {
		return fmt.Errorf("features config: %w", err)
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}

	if err := c.Dataset.Validate(); err != nil {
		return fmt.Errorf("dataset config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", a.SampleRate)
	}

	if a.SegmentDuration <= 0 {
		return fmt.Errorf("segment_duration must be positive, got %f", a.SegmentDuration)
	}

	if a.SegmentSamples() < 1 {
		return fmt.Errorf("segment_duration %f is shorter than one sample at %d Hz", a.SegmentDuration, a.SampleRate)
	}

	if len(a.Extensions) == 0 {
		return fmt.Errorf("extensions cannot be empty")
	}

	for _, ext := range a.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}

	return nil
}

// Validate validates feature configuration against the decoder sample rate
func (f *FeatureConfig) Validate(sampleRate int) error {
	if f.NumCoefficients < 1 {
		return fmt.Errorf("n_mfcc must be at least 1, got %d", f.NumCoefficients)
	}

	if f.NumMels < f.NumCoefficients {
		return fmt.Errorf("n_mels (%d) must be at least n_mfcc (%d)", f.NumMels, f.NumCoefficients)
	}

	if f.FFTSize < 16 || f.FFTSize&(f.FFTSize-1) != 0 {
		return fmt.Errorf("n_fft must be a power of two no smaller than 16, got %d", f.FFTSize)
	}

	if f.HopLength < 1 || f.HopLength > f.FFTSize {
		return fmt.Errorf("hop_length must be between 1 and n_fft (%d), got %d", f.FFTSize, f.HopLength)
	}

	if f.TopDB < 0 {
		return fmt.Errorf("top_db cannot be negative, got %f", f.TopDB)
	}

	if sampleRate/2 <= 0 {
		return fmt.Errorf("sample rate %d leaves no spectrum to analyse", sampleRate)
	}

	return nil
}

// Validate validates model configuration
func (m *ModelConfig) Validate() error {
	if m.ClassifierPath == "" {
		return fmt.Errorf("classifier_path cannot be empty")
	}

	if m.ScalerPath == "" {
		return fmt.Errorf("scaler_path cannot be empty")
	}

	validFormats := map[string]bool{"": true, "json": true, "quantized": true}
	if !validFormats[m.Format] {
		return fmt.Errorf("format must be 'json' or 'quantized', got '%s'", m.Format)
	}

	if m.Threshold < 0 || m.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", m.Threshold)
	}

	return nil
}

// Validate validates dataset configuration
func (d *DatasetConfig) Validate() error {
	if d.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", d.Workers)
	}

	if d.TestFraction <= 0 || d.TestFraction >= 1 {
		return fmt.Errorf("test_fraction must be between 0 and 1 (exclusive), got %f", d.TestFraction)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	if h.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", h.MaxUploadMB)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// Validate validates tracing configuration
func (t *TracingConfig) Validate() error {
	validExporters := map[string]bool{"none": true, "stdout": true}
	if !validExporters[t.Exporter] {
		return fmt.Errorf("exporter must be 'none' or 'stdout', got '%s'", t.Exporter)
	}

	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %f", t.SampleRate)
	}

	return nil
}

// SegmentSamples returns the number of samples in one analysis segment
func (a *AudioConfig) SegmentSamples() int {
	return int(a.SegmentDuration * float64(a.SampleRate))
}

// GetSegmentDuration returns the segment duration as a time.Duration
func (a *AudioConfig) GetSegmentDuration() time.Duration {
	return time.Duration(a.SegmentDuration * float64(time.Second))
}

// MaxUploadBytes returns the upload limit in bytes
func (h *HTTPConfig) MaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// ListenAddress returns the host:port the HTTP server binds to
func (h *HTTPConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/config"
	"github.com/AnkitChauhan19/Audiva/internal/metrics"
	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
)

const defaultConfigPath = "configs/config.yaml"

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded before any subcommand runs
	globalConfig *config.Config
	logger       *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "audiva",
	Short: "Tell AI generated speech from human speech",
	Long: `audiva - classify recordings as real or AI generated speech.

Audio is decoded to 22050 Hz mono, cut into two second segments and each
segment is summarized by its mean MFCCs. A recurrent classifier scores every
segment and the mean score decides the verdict.

Configuration is read from configs/config.yaml when present, or from the
file named by --config or AUDIVA_CONFIG. A .env file in the working
directory is loaded first.

Examples:
  # Classify a recording
  audiva predict interview.mp3

  # Build the training and validation archives, then fit the scaler
  audiva dataset build
  audiva scaler fit

  # Serve the upload form and JSON API
  audiva serve`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// setup loads configuration and installs the logger
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	l, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	globalConfig = cfg
	logger = l
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("config_path", resolvedConfigPath()),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("segment_duration", cfg.Audio.SegmentDuration),
		slog.String("classifier_path", cfg.Model.ClassifierPath),
		slog.String("scaler_path", cfg.Model.ScalerPath),
		slog.Float64("threshold", cfg.Model.Threshold),
	)
	return nil
}

// resolvedConfigPath returns the flag value, then AUDIVA_CONFIG, then the
// default location
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if v := os.Getenv("AUDIVA_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

// loadConfig reads the configuration file. A missing default file falls
// back to built-in defaults; a missing file that was asked for explicitly
// is an error.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := resolvedConfigPath()
	explicit := path != defaultConfigPath
	if _, err := os.Stat(path); err == nil || explicit {
		return config.Load(path)
	}

	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newPipeline builds the shared pipeline. When withArtifacts is set the
// classifier and scaler are loaded and checked against the feature config.
func newPipeline(cfg *config.Config, m *metrics.Metrics, withArtifacts bool) (*pipeline.Pipeline, error) {
	var artifacts *pipeline.Artifacts
	if withArtifacts {
		var err error
		artifacts, err = pipeline.LoadArtifacts(cfg.Model, pipeline.FeatureConfig(cfg))
		if err != nil {
			return nil, err
		}
		logger.Info("Artifacts loaded",
			slog.String("classifier_path", cfg.Model.ClassifierPath),
			slog.String("scaler_path", cfg.Model.ScalerPath),
		)
	}
	return pipeline.New(cfg, artifacts, m, logger)
}

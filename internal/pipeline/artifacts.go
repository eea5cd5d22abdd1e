package pipeline

import (
	"fmt"

	"github.com/AnkitChauhan19/Audiva/internal/config"
	"github.com/AnkitChauhan19/Audiva/internal/features"
	"github.com/AnkitChauhan19/Audiva/internal/model"
	"github.com/AnkitChauhan19/Audiva/internal/scaler"
)

// Artifacts is the read-only pair of trained parameters shared by every
// prediction. Load it once and pass it to New.
type Artifacts struct {
	Classifier model.Classifier
	Scaler     *scaler.State
}

// FeatureConfig derives the extraction parameters from the service config
func FeatureConfig(cfg *config.Config) features.Config {
	return features.Config{
		SampleRate:      cfg.Audio.SampleRate,
		NumCoefficients: cfg.Features.NumCoefficients,
		NumMels:         cfg.Features.NumMels,
		FFTSize:         cfg.Features.FFTSize,
		HopLength:       cfg.Features.HopLength,
		TopDB:           cfg.Features.TopDB,
	}
}

// LoadArtifacts reads the classifier and scaler named in cfg and checks
// that both accept the vectors fc produces.
func LoadArtifacts(cfg config.ModelConfig, fc features.Config) (*Artifacts, error) {
	network, err := model.Load(cfg.ClassifierPath, cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}

	state, err := scaler.Load(cfg.ScalerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scaler: %w", err)
	}

	if err := state.Check(fc.Fingerprint(), fc.NumCoefficients); err != nil {
		return nil, err
	}

	if network.InputLen() != fc.NumCoefficients {
		return nil, fmt.Errorf("%w: classifier takes %d values, extractor produces %d",
			model.ErrInputShape, network.InputLen(), fc.NumCoefficients)
	}

	return &Artifacts{Classifier: network, Scaler: state}, nil
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AnkitChauhan19/Audiva/internal/audio"
	"github.com/AnkitChauhan19/Audiva/internal/config"
	"github.com/AnkitChauhan19/Audiva/internal/features"
	"github.com/AnkitChauhan19/Audiva/internal/metrics"
	"github.com/AnkitChauhan19/Audiva/internal/tracing"
	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

// Result is the outcome of classifying one file
type Result struct {
	Path          string          `json:"path"`
	AudioDuration time.Duration   `json:"audio_duration"`
	Segments      int             `json:"segments"`
	Probabilities []float64       `json:"probabilities"`
	Verdict       verdict.Verdict `json:"verdict"`
	Elapsed       time.Duration   `json:"elapsed"`
}

// Pipeline runs Decode, Segment, Extract, Scale, Classify and Aggregate
// for one file at a time. It holds only read-only state and may be shared
// between goroutines.
type Pipeline struct {
	decoder         *audio.Decoder
	extractor       *features.Extractor
	artifacts       *Artifacts
	extensions      []string
	segmentDuration float64
	threshold       float64
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

// New creates a pipeline. artifacts may be nil for a pipeline that only
// extracts features; Predict then returns ErrNoArtifacts.
func New(cfg *config.Config, artifacts *Artifacts, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	extractor, err := features.New(FeatureConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		decoder:         audio.NewDecoder(cfg.Audio.SampleRate),
		extractor:       extractor,
		artifacts:       artifacts,
		extensions:      cfg.Audio.Extensions,
		segmentDuration: cfg.Audio.SegmentDuration,
		threshold:       cfg.Model.Threshold,
		metrics:         m,
		logger:          logger,
	}, nil
}

// Threshold returns the decision threshold used by Predict
func (p *Pipeline) Threshold() float64 {
	return p.threshold
}

// Extractor returns the feature extractor
func (p *Pipeline) Extractor() *features.Extractor {
	return p.extractor
}

// Predict classifies the audio file at path
func (p *Pipeline) Predict(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "pipeline.predict",
		trace.WithAttributes(attribute.String("audio.path", path)))
	defer span.End()

	result, err := p.predict(ctx, path)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordPredictionFailure(FailureReason(err), elapsed.Seconds())
		p.logger.Warn("Prediction failed",
			slog.String("path", path),
			slog.String("reason", FailureReason(err)),
			slog.String("error", err.Error()))
		return nil, err
	}

	result.Elapsed = elapsed
	span.SetAttributes(
		attribute.Int("audio.segments", result.Segments),
		attribute.Float64("verdict.probability", result.Verdict.Probability),
		attribute.String("verdict.label", result.Verdict.Label.String()),
	)
	p.metrics.RecordPrediction(result.Verdict.Label.String(), result.Segments, result.Verdict.Probability, elapsed.Seconds())
	p.logger.Info("Prediction complete",
		slog.String("path", path),
		slog.Int("segments", result.Segments),
		slog.Float64("probability", result.Verdict.Probability),
		slog.String("verdict", result.Verdict.Label.String()),
		slog.Duration("elapsed", elapsed))

	return result, nil
}

func (p *Pipeline) predict(ctx context.Context, path string) (*Result, error) {
	if p.artifacts == nil {
		return nil, ErrNoArtifacts
	}

	if err := audio.ValidateExtension(path, p.extensions); err != nil {
		return nil, err
	}

	vectors, waveform, err := p.segmentFeatures(ctx, path)
	if err != nil {
		return nil, err
	}

	var scaled [][]float64
	err = p.stage(ctx, "scale", func(context.Context) error {
		rows := make([][]float64, len(vectors))
		for i, v := range vectors {
			rows[i] = v
		}
		var err error
		scaled, err = p.artifacts.Scaler.Transform(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	probs := make([]float64, len(scaled))
	err = p.stage(ctx, "classify", func(ctx context.Context) error {
		for i, row := range scaled {
			if err := ctx.Err(); err != nil {
				return err
			}
			prob, err := p.artifacts.Classifier.Predict(row)
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			probs[i] = prob
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var v verdict.Verdict
	err = p.stage(ctx, "aggregate", func(context.Context) error {
		var err error
		v, err = verdict.Aggregate(probs, p.threshold)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:          path,
		AudioDuration: waveform.Duration(),
		Segments:      len(vectors),
		Probabilities: probs,
		Verdict:       v,
	}, nil
}

// Features decodes path, splits it into segments and returns one feature
// vector per segment.
func (p *Pipeline) Features(ctx context.Context, path string) ([]features.Vector, error) {
	vectors, _, err := p.segmentFeatures(ctx, path)
	return vectors, err
}

func (p *Pipeline) segmentFeatures(ctx context.Context, path string) ([]features.Vector, audio.Waveform, error) {
	waveform, err := p.decode(ctx, path)
	if err != nil {
		return nil, audio.Waveform{}, err
	}

	var segments []audio.Segment
	err = p.stage(ctx, "segment", func(context.Context) error {
		segments = audio.Split(waveform, p.segmentDuration)
		if len(segments) == 0 {
			return fmt.Errorf("%w: %s lasts %s, segments are %gs",
				ErrNoSegments, path, waveform.Duration().Round(time.Millisecond), p.segmentDuration)
		}
		return nil
	})
	if err != nil {
		return nil, audio.Waveform{}, err
	}

	vectors := make([]features.Vector, len(segments))
	err = p.stage(ctx, "extract", func(ctx context.Context) error {
		for i, segment := range segments {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := p.extractor.Extract(segment.Samples)
			if err != nil {
				return fmt.Errorf("segment %d: %w", segment.Index, err)
			}
			vectors[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, audio.Waveform{}, err
	}

	return vectors, waveform, nil
}

// ExtractFile decodes path and summarizes the whole file as one vector,
// without segmenting. This is the bulk dataset path.
func (p *Pipeline) ExtractFile(ctx context.Context, path string) (features.Vector, error) {
	waveform, err := p.decode(ctx, path)
	if err != nil {
		return nil, err
	}

	var v features.Vector
	err = p.stage(ctx, "extract", func(context.Context) error {
		var err error
		v, err = p.extractor.Extract(waveform.Samples)
		return err
	})
	return v, err
}

func (p *Pipeline) decode(ctx context.Context, path string) (audio.Waveform, error) {
	var waveform audio.Waveform
	err := p.stage(ctx, "decode", func(context.Context) error {
		var err error
		waveform, err = p.decoder.DecodeFile(path)
		return err
	})
	return waveform, err
}

// stage runs fn inside a span and records its duration
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.RecordStage(name, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

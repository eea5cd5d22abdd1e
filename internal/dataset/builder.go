package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AnkitChauhan19/Audiva/internal/features"
	"github.com/AnkitChauhan19/Audiva/internal/metrics"
)

// Outcomes recorded per file
const (
	OutcomeExtracted = "extracted"
	OutcomeFailed    = "failed"
	OutcomeInvalid   = "invalid"
)

// FileExtractor summarizes a whole audio file as one feature vector.
// *pipeline.Pipeline implements it.
type FileExtractor interface {
	ExtractFile(ctx context.Context, path string) (features.Vector, error)
}

// FileResult is the outcome of one task. Err is set when the file was
// skipped.
type FileResult struct {
	Task    Task
	Vector  features.Vector
	Err     error
	Elapsed time.Duration
}

// Summary describes a finished build
type Summary struct {
	Total     int
	Extracted int
	Failed    []FileResult
	Elapsed   time.Duration
}

// BuilderConfig configures a Builder
type BuilderConfig struct {
	Workers     int
	Seed        int64
	Fingerprint string
}

// Builder extracts features for many files with a fixed pool of workers
type Builder struct {
	extractor FileExtractor
	cfg       BuilderConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewBuilder creates a builder. Workers <= 0 means one per CPU.
func NewBuilder(extractor FileExtractor, cfg BuilderConfig, m *metrics.Metrics, logger *slog.Logger) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		extractor: extractor,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// Workers returns the pool size
func (b *Builder) Workers() int {
	return b.cfg.Workers
}

// Build extracts one vector per task and returns the successful ones,
// shuffled with the configured seed. Files that fail to decode or produce
// non-finite features are logged and left out. Build only fails when ctx
// is cancelled.
func (b *Builder) Build(ctx context.Context, tasks []Task) (*Dataset, Summary, error) {
	start := time.Now()
	results := make([]FileResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan int)

	b.metrics.SetDatasetQueueSize(len(tasks))
	g.Go(func() error {
		defer close(queue)
		for i := range tasks {
			select {
			case queue <- i:
				b.metrics.SetDatasetQueueSize(len(tasks) - i - 1)
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < b.cfg.Workers; w++ {
		g.Go(func() error {
			for i := range queue {
				results[i] = b.process(gctx, tasks[i], w)
				if err := gctx.Err(); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Summary{}, fmt.Errorf("dataset build interrupted: %w", err)
	}

	d := &Dataset{Fingerprint: b.cfg.Fingerprint}
	summary := Summary{Total: len(tasks)}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed = append(summary.Failed, r)
			continue
		}
		d.Append(r.Vector, r.Task.Label)
	}
	summary.Extracted = d.Len()

	d.Shuffle(b.cfg.Seed)
	summary.Elapsed = time.Since(start)

	b.logger.Info("Dataset build complete",
		slog.Int("files", summary.Total),
		slog.Int("extracted", summary.Extracted),
		slog.Int("failed", len(summary.Failed)),
		slog.Int("workers", b.cfg.Workers),
		slog.Duration("elapsed", summary.Elapsed))

	return d, summary, nil
}

// process handles one task on worker w
func (b *Builder) process(ctx context.Context, task Task, w int) FileResult {
	start := time.Now()
	v, err := b.extractor.ExtractFile(ctx, task.Path)
	result := FileResult{Task: task, Vector: v, Err: err, Elapsed: time.Since(start)}

	outcome := OutcomeExtracted
	if err == nil && !finite(v) {
		result.Err = fmt.Errorf("%w: %s produced non-finite features", ErrInvalid, task.Path)
		outcome = OutcomeInvalid
	} else if err != nil {
		outcome = OutcomeFailed
	}
	b.metrics.RecordDatasetFile(outcome, result.Elapsed.Seconds())

	if result.Err != nil && ctx.Err() == nil {
		b.logger.Warn("Skipping file",
			slog.Int("worker_id", w),
			slog.String("path", task.Path),
			slog.String("label", task.Label.String()),
			slog.String("error", result.Err.Error()))
	} else if result.Err == nil {
		b.logger.Debug("Extracted features",
			slog.Int("worker_id", w),
			slog.String("path", task.Path),
			slog.Duration("elapsed", result.Elapsed))
	}

	return result
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/config"
	"github.com/AnkitChauhan19/Audiva/internal/dataset"
	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build feature datasets",
}

var (
	buildTrainDir   string
	buildValDir     string
	buildTrainOut   string
	buildValOut     string
	buildWorkers    int
	buildSeed       int64
	buildSkipValSet bool
)

var datasetBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Extract features from labeled directories into archives",
	Long: `Extract one feature vector per file from the training and validation
directories and write each set as a compressed archive.

Each directory must contain a fake/ and a real/ subdirectory. Files are
processed by a pool of workers; files that cannot be decoded are logged and
skipped. The examples are shuffled with the configured seed.`,
	Args: cobra.NoArgs,
	RunE: runDatasetBuild,
}

func init() {
	f := datasetBuildCmd.Flags()
	f.StringVar(&buildTrainDir, "train-dir", "", "training directory (overrides dataset.train_dir)")
	f.StringVar(&buildValDir, "validation-dir", "", "validation directory (overrides dataset.validation_dir)")
	f.StringVar(&buildTrainOut, "train-output", "", "training archive (overrides dataset.train_output)")
	f.StringVar(&buildValOut, "validation-output", "", "validation archive (overrides dataset.validation_output)")
	f.IntVarP(&buildWorkers, "workers", "w", 0, "worker count (overrides dataset.workers)")
	f.Int64Var(&buildSeed, "seed", 0, "shuffle seed (overrides dataset.seed)")
	f.BoolVar(&buildSkipValSet, "skip-validation", false, "only build the training archive")

	datasetCmd.AddCommand(datasetBuildCmd)
	rootCmd.AddCommand(datasetCmd)
}

func runDatasetBuild(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	applyDatasetFlags(cmd, &cfg.Dataset)

	p, err := newPipeline(cfg, nil, false)
	if err != nil {
		return err
	}

	builder := dataset.NewBuilder(p, dataset.BuilderConfig{
		Workers:     cfg.Dataset.Workers,
		Seed:        cfg.Dataset.Seed,
		Fingerprint: p.Extractor().Config().Fingerprint(),
	}, nil, logger)

	sets := []struct{ name, dir, output string }{
		{"training", cfg.Dataset.TrainDir, cfg.Dataset.TrainOutput},
		{"validation", cfg.Dataset.ValidationDir, cfg.Dataset.ValidationOutput},
	}
	if buildSkipValSet {
		sets = sets[:1]
	}

	for _, set := range sets {
		if err := buildSet(cmd, cfg, builder, set.name, set.dir, set.output); err != nil {
			return fmt.Errorf("%s set: %w", set.name, err)
		}
	}
	return nil
}

func applyDatasetFlags(cmd *cobra.Command, d *config.DatasetConfig) {
	flags := cmd.Flags()
	if flags.Changed("train-dir") {
		d.TrainDir = buildTrainDir
	}
	if flags.Changed("validation-dir") {
		d.ValidationDir = buildValDir
	}
	if flags.Changed("train-output") {
		d.TrainOutput = buildTrainOut
	}
	if flags.Changed("validation-output") {
		d.ValidationOutput = buildValOut
	}
	if flags.Changed("workers") {
		d.Workers = buildWorkers
	}
	if flags.Changed("seed") {
		d.Seed = buildSeed
	}
}

func buildSet(cmd *cobra.Command, cfg *config.Config, builder *dataset.Builder, name, dir, output string) error {
	tasks, err := dataset.Collect(dir, cfg.Audio.Extensions)
	if err != nil {
		return err
	}
	logger.Info("Building dataset",
		slog.String("set", name),
		slog.String("dir", dir),
		slog.Int("files", len(tasks)),
		slog.Int("workers", builder.Workers()),
	)

	d, summary, err := builder.Build(cmd.Context(), tasks)
	if err != nil {
		return err
	}
	if d.Len() == 0 {
		return fmt.Errorf("no usable files under %s", dir)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := d.Save(output); err != nil {
		return err
	}

	counts := d.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d examples (%d fake, %d real), %d skipped, written to %s in %s\n",
		name, d.Len(), counts[verdict.Fake], counts[verdict.Real], len(summary.Failed), output, summary.Elapsed.Round(time.Millisecond))
	return nil
}

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/dataset"
	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
	"github.com/AnkitChauhan19/Audiva/internal/scaler"
)

var scalerCmd = &cobra.Command{
	Use:   "scaler",
	Short: "Manage the feature scaler",
}

var (
	fitDataset   string
	fitOutput    string
	fitTestOut   string
	fitFraction  float64
	fitSplitSeed int64
)

var scalerFitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the feature scaler on the training portion of a dataset",
	Long: `Split the training archive into train and test portions, stratified by
label, and fit the standardization on the train portion only. The scaler is
tagged with the feature settings of the archive so it is never applied to
vectors extracted differently.`,
	Args: cobra.NoArgs,
	RunE: runScalerFit,
}

func init() {
	f := scalerFitCmd.Flags()
	f.StringVar(&fitDataset, "dataset", "", "training archive (default dataset.train_output)")
	f.StringVarP(&fitOutput, "output", "o", "", "scaler file (default model.scaler_path)")
	f.StringVar(&fitTestOut, "test-output", "", "also write the held out test portion to this archive")
	f.Float64Var(&fitFraction, "test-fraction", 0, "share of each class held out (default dataset.test_fraction)")
	f.Int64Var(&fitSplitSeed, "seed", 0, "split seed (default dataset.seed)")

	scalerCmd.AddCommand(scalerFitCmd)
	rootCmd.AddCommand(scalerCmd)
}

func runScalerFit(cmd *cobra.Command, args []string) error {
	cfg := globalConfig

	input := cfg.Dataset.TrainOutput
	if fitDataset != "" {
		input = fitDataset
	}
	output := cfg.Model.ScalerPath
	if fitOutput != "" {
		output = fitOutput
	}
	fraction := cfg.Dataset.TestFraction
	if cmd.Flags().Changed("test-fraction") {
		fraction = fitFraction
	}
	seed := cfg.Dataset.Seed
	if cmd.Flags().Changed("seed") {
		seed = fitSplitSeed
	}

	d, err := dataset.Load(input)
	if err != nil {
		return err
	}

	fingerprint := pipeline.FeatureConfig(cfg).Fingerprint()
	if d.Fingerprint != "" && d.Fingerprint != fingerprint {
		return fmt.Errorf("%w: archive built with %q, current settings are %q", scaler.ErrMismatch, d.Fingerprint, fingerprint)
	}

	train, test, err := dataset.StratifiedSplit(d, fraction, seed)
	if err != nil {
		return err
	}

	state, err := scaler.Fit(train.Features)
	if err != nil {
		return err
	}
	state.Fingerprint = fingerprint

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := state.Save(output); err != nil {
		return err
	}

	if fitTestOut != "" {
		if err := test.Save(fitTestOut); err != nil {
			return err
		}
	}

	logger.Info("Scaler fitted",
		slog.String("dataset", input),
		slog.Int("train", train.Len()),
		slog.Int("test", test.Len()),
		slog.String("output", output),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "scaler fit on %d of %d examples (%d held out), written to %s\n",
		train.Len(), d.Len(), test.Len(), output)
	return nil
}

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/dataset"
	"github.com/AnkitChauhan19/Audiva/internal/evaluate"
	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
)

var (
	evalDataset   string
	evalThreshold float64
	evalJSON      bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Print a classification report for a dataset archive",
	Long: `Score the classifier against a labeled archive and print per-class
precision, recall and F1 with overall accuracy. The validation archive is
used unless --dataset names another.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalDataset, "dataset", "", "archive to score (default dataset.validation_output)")
	evaluateCmd.Flags().Float64Var(&evalThreshold, "threshold", 0.5, "decision threshold (overrides model.threshold)")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	if cmd.Flags().Changed("threshold") {
		cfg.Model.Threshold = evalThreshold
		if err := cfg.Model.Validate(); err != nil {
			return err
		}
	}

	input := cfg.Dataset.ValidationOutput
	if evalDataset != "" {
		input = evalDataset
	}

	d, err := dataset.Load(input)
	if err != nil {
		return err
	}

	artifacts, err := pipeline.LoadArtifacts(cfg.Model, pipeline.FeatureConfig(cfg))
	if err != nil {
		return err
	}

	report, err := evaluate.Evaluate(cmd.Context(), artifacts.Classifier, artifacts.Scaler, d, cfg.Model.Threshold)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if evalJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "%s (%d examples, threshold %.2f)\n\n", input, d.Len(), cfg.Model.Threshold)
	fmt.Fprint(out, report.String())
	return nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
)

var (
	predictThreshold float64
	predictJSON      bool
)

var predictCmd = &cobra.Command{
	Use:   "predict <file>...",
	Short: "Classify audio files as real or AI generated",
	Long: `Classify one or more audio files.

Each file is split into segments, every segment is scored and the mean score
is compared with the threshold (model.threshold, 0.5 by default). Files that
cannot be processed are reported and the command exits with an error after
the remaining files are classified.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().Float64Var(&predictThreshold, "threshold", 0.5, "decision threshold (overrides model.threshold)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(predictCmd)
}

// predictOutput is one line of JSON output
type predictOutput struct {
	Path           string    `json:"path"`
	Segments       int       `json:"segments,omitempty"`
	Probabilities  []float64 `json:"probabilities,omitempty"`
	Probability    float64   `json:"probability,omitempty"`
	Percent        float64   `json:"percent,omitempty"`
	Verdict        string    `json:"verdict,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	if cmd.Flags().Changed("threshold") {
		cfg.Model.Threshold = predictThreshold
		if err := cfg.Model.Validate(); err != nil {
			return err
		}
	}

	p, err := newPipeline(cfg, nil, true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	failed := 0
	for _, path := range args {
		result, err := p.Predict(cmd.Context(), path)
		if err != nil {
			failed++
		}

		if predictJSON {
			if err := enc.Encode(toPredictOutput(path, result, err)); err != nil {
				return err
			}
			continue
		}
		printResult(out, path, result, err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be classified", failed, len(args))
	}
	return nil
}

func toPredictOutput(path string, result *pipeline.Result, err error) predictOutput {
	if err != nil {
		return predictOutput{Path: path, Error: pipeline.UserMessage(err)}
	}
	return predictOutput{
		Path:           path,
		Segments:       result.Segments,
		Probabilities:  result.Probabilities,
		Probability:    result.Verdict.Probability,
		Percent:        result.Verdict.Percent(),
		Verdict:        result.Verdict.Label.String(),
		Recommendation: result.Verdict.Recommendation(),
	}
}

func printResult(w io.Writer, path string, result *pipeline.Result, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s: %s\n", path, pipeline.UserMessage(err))
		return
	}

	v := result.Verdict
	fmt.Fprintf(w, "%s: %s (%.2f%% real, %d segments)\n", path, v.Label.Description(), v.Percent(), result.Segments)
	fmt.Fprintf(w, "  %s\n", v.Recommendation())
}

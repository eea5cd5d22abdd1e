package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/model"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage classifier artifacts",
}

var quantizeOutput string

var modelQuantizeCmd = &cobra.Command{
	Use:   "quantize <weights.json>",
	Short: "Convert JSON weights to the portable int8 form",
	Long: `Convert a JSON weights file to the quantized msgpack form used for
lightweight deployment. Kernels are stored as int8 with one scale per tensor.
Set model.format to "quantized" (or use a .msgpack path) to load it.`,
	Args: cobra.ExactArgs(1),
	RunE: runModelQuantize,
}

func init() {
	modelQuantizeCmd.Flags().StringVarP(&quantizeOutput, "output", "o", "", "output file (default <input>.msgpack)")
	modelCmd.AddCommand(modelQuantizeCmd)
	rootCmd.AddCommand(modelCmd)
}

func runModelQuantize(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := quantizeOutput
	if output == "" {
		output = strings.TrimSuffix(input, ".json") + ".msgpack"
	}

	w, err := model.ReadWeights(input)
	if err != nil {
		return err
	}

	q, err := model.Quantize(w)
	if err != nil {
		return err
	}
	if err := q.Save(output); err != nil {
		return err
	}

	// Make sure the artifact loads back as a working network
	if _, err := model.Load(output, model.FormatQuantized); err != nil {
		return fmt.Errorf("quantized model does not load: %w", err)
	}

	before, err := os.Stat(input)
	if err != nil {
		return err
	}
	after, err := os.Stat(output)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "quantized %s (%d bytes) to %s (%d bytes)\n",
		input, before.Size(), output, after.Size())
	return nil
}

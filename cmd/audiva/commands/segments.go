package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/audio"
	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
)

var segmentsOutDir string

var segmentsCmd = &cobra.Command{
	Use:   "segments <file>",
	Short: "Write each analysis segment of a file as a WAV clip",
	Long: `Decode a file and write every full segment as a mono 16-bit WAV at the
analysis sample rate. The trailing partial segment is dropped, exactly as
during prediction.`,
	Args: cobra.ExactArgs(1),
	RunE: runSegments,
}

func init() {
	segmentsCmd.Flags().StringVarP(&segmentsOutDir, "output-dir", "o", ".", "directory for the clips")
	rootCmd.AddCommand(segmentsCmd)
}

func runSegments(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	path := args[0]

	if err := audio.ValidateExtension(path, cfg.Audio.Extensions); err != nil {
		return err
	}

	waveform, err := audio.NewDecoder(cfg.Audio.SampleRate).DecodeFile(path)
	if err != nil {
		return err
	}

	segments := audio.Split(waveform, cfg.Audio.SegmentDuration)
	if len(segments) == 0 {
		return fmt.Errorf("%w: %s", pipeline.ErrNoSegments, path)
	}

	if err := os.MkdirAll(segmentsOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, s := range segments {
		name := filepath.Join(segmentsOutDir, fmt.Sprintf("%s_%03d.wav", base, s.Index))
		if err := audio.WriteWAVFile(name, s.Samples, waveform.SampleRate); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d segments of %gs to %s\n", len(segments), cfg.Audio.SegmentDuration, segmentsOutDir)
	return nil
}

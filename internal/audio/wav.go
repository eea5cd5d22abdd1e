package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcmBitDepth = 16

// toPCM16 clips normalized samples to [-1, 1] and scales them to 16-bit
// integer PCM.
func toPCM16(samples []float32) []int {
	pcm := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		pcm[i] = int(s * 32767)
	}
	return pcm
}

// WriteWAVFile writes normalized mono samples to path as 16-bit PCM WAV
func WriteWAVFile(path string, samples []float32, sampleRate int) (err error) {
	if len(samples) == 0 {
		return errors.New("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, pcmBitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           toPCM16(samples),
		SourceBitDepth: pcmBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio data to %s: %w", path, err)
	}

	// Close patches the RIFF and data chunk sizes
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// flushSeconds of trailing silence pushes the filter tail out of the
// resampler before the output is cut to length.
const flushSeconds = 0.1

// resample converts mono samples from one rate to another. The output holds
// ceil(len(samples) * to / from) samples.
func resample(samples []float64, from, to int) ([]float64, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	if to <= 0 {
		return nil, fmt.Errorf("invalid target sample rate %d", to)
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler %d->%d Hz: %w", from, to, err)
	}

	padded := make([]float64, len(samples)+int(flushSeconds*float64(from)))
	copy(padded, samples)

	output, err := resampler.Process(padded)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	want := int(math.Ceil(float64(len(samples)) * float64(to) / float64(from)))
	switch {
	case len(output) > want:
		output = output[:want]
	case len(output) < want:
		output = append(output, make([]float64, want-len(output))...)
	}
	return output, nil
}

package audio

import (
	"time"
)

// Waveform is decoded mono audio at a known sample rate. Samples are
// normalized to [-1, 1]. A Waveform is never modified after decoding.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples
func (w Waveform) Len() int {
	return len(w.Samples)
}

// Duration returns the playback length of the waveform
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Segment is one fixed-length analysis window of a Waveform
type Segment struct {
	Index   int       `json:"index"`
	Offset  int       `json:"offset"` // first sample, relative to the waveform
	Samples []float32 `json:"-"`
}

// Start returns the segment start time within the waveform
func (s Segment) Start(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(s.Offset) / float64(sampleRate) * float64(time.Second))
}

// WindowSize returns the number of samples in a window of the given duration
func WindowSize(duration float64, sampleRate int) int {
	return int(duration * float64(sampleRate))
}

// Split partitions w into consecutive non-overlapping segments of duration
// seconds. The trailing remainder shorter than one window is dropped, so a
// waveform shorter than one window yields no segments.
func Split(w Waveform, duration float64) []Segment {
	window := WindowSize(duration, w.SampleRate)
	windows := SplitSamples(w.Samples, window)

	segments := make([]Segment, len(windows))
	for i, samples := range windows {
		segments[i] = Segment{
			Index:   i,
			Offset:  i * window,
			Samples: samples,
		}
	}
	return segments
}

// SplitSamples returns floor(len(samples)/window) sub-slices of exactly window
// samples each. The sub-slices share memory with samples and are capped so an
// append on one cannot overwrite its neighbour.
func SplitSamples(samples []float32, window int) [][]float32 {
	if window <= 0 {
		return nil
	}

	count := len(samples) / window
	windows := make([][]float32, 0, count)
	for start := 0; start+window <= len(samples); start += window {
		windows = append(windows, samples[start:start+window:start+window])
	}
	return windows
}

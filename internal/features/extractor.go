package features

import (
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// amin floors power values before the log so silence maps to -100 dB.
const amin = 1e-10

// ErrEmptyInput is returned when there are no samples to analyse.
var ErrEmptyInput = errors.New("features: empty input")

// Vector is the time-averaged cepstral summary of one segment or file.
type Vector []float64

// Extractor computes MFCC features from mono float32 samples. It keeps no
// per-call state and is safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank *mat.Dense // NumMels x FFTSize/2+1
	dct     *mat.Dense // NumCoefficients x NumMels

	// fourier.FFT carries a work buffer, so each goroutine borrows its own.
	ffts sync.Pool
}

// New creates an Extractor for cfg.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.FFTSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate),
		dct:     dctBasis(cfg.NumCoefficients, cfg.NumMels),
	}
	e.ffts.New = func() any {
		return fourier.NewFFT(cfg.FFTSize)
	}
	return e, nil
}

// Config returns the extraction parameters.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Dim returns the length of the vectors produced by Extract.
func (e *Extractor) Dim() int {
	return e.cfg.NumCoefficients
}

// NumFrames returns the number of analysis frames for n samples. Frames are
// centered, so there is always at least one.
func (e *Extractor) NumFrames(n int) int {
	return 1 + n/e.cfg.HopLength
}

// Extract computes the per-frame MFCCs of samples and averages them over
// time.
func (e *Extractor) Extract(samples []float32) (Vector, error) {
	cepstra, err := e.cepstra(samples)
	if err != nil {
		return nil, err
	}

	vector := make(Vector, e.cfg.NumCoefficients)
	for k := range vector {
		vector[k] = stat.Mean(mat.Row(nil, k, cepstra), nil)
	}
	return vector, nil
}

// MFCC returns the coefficient matrix indexed as [frame][coefficient].
func (e *Extractor) MFCC(samples []float32) ([][]float64, error) {
	cepstra, err := e.cepstra(samples)
	if err != nil {
		return nil, err
	}

	_, frames := cepstra.Dims()
	out := make([][]float64, frames)
	for t := range out {
		out[t] = mat.Col(nil, t, cepstra)
	}
	return out, nil
}

// cepstra returns the NumCoefficients x frames MFCC matrix.
func (e *Extractor) cepstra(samples []float32) (*mat.Dense, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}

	power := e.powerSpectrogram(samples)

	var melSpec mat.Dense
	melSpec.Mul(e.melBank, power)
	powerToDB(&melSpec, e.cfg.TopDB)

	var cepstra mat.Dense
	cepstra.Mul(e.dct, &melSpec)
	return &cepstra, nil
}

// powerSpectrogram returns |STFT|^2 as a bins x frames matrix. Frames are
// centered on multiples of the hop length with zero padding of FFTSize/2 on
// both ends of the signal.
func (e *Extractor) powerSpectrogram(samples []float32) *mat.Dense {
	nfft := e.cfg.FFTSize
	hop := e.cfg.HopLength
	bins := nfft/2 + 1
	frames := e.NumFrames(len(samples))
	pad := nfft / 2

	fft := e.ffts.Get().(*fourier.FFT)
	defer e.ffts.Put(fft)

	frame := make([]float64, nfft)
	coeffs := make([]complex128, bins)
	power := mat.NewDense(bins, frames, nil)

	for t := 0; t < frames; t++ {
		start := t*hop - pad
		for i := range frame {
			j := start + i
			if j < 0 || j >= len(samples) {
				frame[i] = 0
				continue
			}
			frame[i] = float64(samples[j]) * e.window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power.Set(k, t, re*re+im*im)
		}
	}
	return power
}

// powerToDB converts power to decibels in place (reference power 1) and
// raises everything more than topDB below the peak to that floor.
func powerToDB(m *mat.Dense, topDB float64) {
	m.Apply(func(_, _ int, v float64) float64 {
		return 10 * math.Log10(math.Max(amin, v))
	}, m)

	if topDB <= 0 {
		return
	}

	floor := mat.Max(m) - topDB
	m.Apply(func(_, _ int, v float64) float64 {
		return math.Max(v, floor)
	}, m)
}

package features

import (
	"fmt"
)

// Config controls MFCC extraction.
//
// The defaults reproduce the parameters the classifier was trained with:
//
//	SampleRate:      22050
//	NumCoefficients: 13
//	NumMels:         128
//	FFTSize:         2048
//	HopLength:       512
//	TopDB:           80
type Config struct {
	SampleRate      int     // sample rate of the input in Hz
	NumCoefficients int     // cepstral coefficients kept per frame
	NumMels         int     // mel bands between 0 Hz and Nyquist
	FFTSize         int     // analysis window and FFT length in samples
	HopLength       int     // samples between frame starts
	TopDB           float64 // dynamic range floor below the peak; 0 disables
}

// DefaultConfig returns the training-time extraction parameters.
func DefaultConfig() Config {
	return Config{
		SampleRate:      22050,
		NumCoefficients: 13,
		NumMels:         128,
		FFTSize:         2048,
		HopLength:       512,
		TopDB:           80,
	}
}

// Validate checks that the parameters describe a usable extractor.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.NumCoefficients < 1 {
		return fmt.Errorf("number of coefficients must be at least 1, got %d", c.NumCoefficients)
	}
	if c.NumMels < c.NumCoefficients {
		return fmt.Errorf("number of mel bands (%d) must be at least the number of coefficients (%d)", c.NumMels, c.NumCoefficients)
	}
	if c.FFTSize < 2 || c.FFTSize%2 != 0 {
		return fmt.Errorf("FFT size must be a positive even number, got %d", c.FFTSize)
	}
	if c.HopLength < 1 {
		return fmt.Errorf("hop length must be positive, got %d", c.HopLength)
	}
	if c.TopDB < 0 {
		return fmt.Errorf("top_db cannot be negative, got %g", c.TopDB)
	}
	return nil
}

// Fingerprint renders the parameters as a stable string. Artifacts fitted
// on feature vectors record it so mismatched extraction settings can be
// detected when they are loaded.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("mfcc/v1 sr=%d n_mfcc=%d n_mels=%d n_fft=%d hop=%d top_db=%g",
		c.SampleRate, c.NumCoefficients, c.NumMels, c.FFTSize, c.HopLength, c.TopDB)
}

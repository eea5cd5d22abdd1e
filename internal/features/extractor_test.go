package features

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newDefault(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(DefaultConfig())
	require.NoError(t, err)
	return e
}

func tone(freq float64, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/22050))
	}
	return samples
}

func TestHannWindow(t *testing.T) {
	w := hannWindow(2048)
	require.Len(t, w, 2048)
	assert.InDelta(t, 0.0, w[0], 1e-12)
	assert.InDelta(t, 1.0, w[1024], 1e-12)
	// periodic window: symmetric around n/2, not around (n-1)/2
	assert.InDelta(t, w[1], w[2047], 1e-12)
}

func TestMelScale(t *testing.T) {
	assert.InDelta(t, 15.0, hzToMel(1000), 1e-9)
	assert.InDelta(t, 7.5, hzToMel(500), 1e-9)
	assert.InDelta(t, 1000.0, melToHz(15), 1e-9)

	for _, hz := range []float64{0, 60, 440, 1000, 4000, 11025} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := melFilterBank(128, 2048, 22050)
	rows, cols := bank.Dims()
	require.Equal(t, 128, rows)
	require.Equal(t, 1025, cols)

	edges := melEdges(128, 11025)
	for m := 0; m < rows; m++ {
		var nonZero bool
		for k := 0; k < cols; k++ {
			w := bank.At(m, k)
			assert.GreaterOrEqual(t, w, 0.0)
			if w > 0 {
				nonZero = true
				hz := 11025 * float64(k) / 1024
				assert.True(t, hz > edges[m] && hz < edges[m+2], "filter %d leaks at %f Hz", m, hz)
			}
		}
		assert.True(t, nonZero, "filter %d is all zeros", m)
	}
}

func TestDCTBasisIsOrthonormal(t *testing.T) {
	basis := dctBasis(16, 16)

	var product mat.Dense
	product.Mul(basis, basis.T())

	identity := mat.NewDiagDense(16, nil)
	for i := 0; i < 16; i++ {
		identity.SetDiag(i, 1)
	}
	assert.True(t, mat.EqualApprox(&product, identity, 1e-12))
}

func TestExtractSilence(t *testing.T) {
	e := newDefault(t)

	vector, err := e.Extract(make([]float32, 44100))
	require.NoError(t, err)
	require.Len(t, vector, 13)

	// every mel band sits at the -100 dB floor
	assert.InDelta(t, -100*math.Sqrt(128), vector[0], 1e-6)
	for k := 1; k < len(vector); k++ {
		assert.InDelta(t, 0.0, vector[k], 1e-6)
	}
}

func TestExtractLength(t *testing.T) {
	e := newDefault(t)

	for _, n := range []int{1, 100, 511, 2048, 44100, 50000} {
		vector, err := e.Extract(tone(440, n))
		require.NoError(t, err, "n=%d", n)
		assert.Len(t, vector, 13, "n=%d", n)
		for _, v := range vector {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "n=%d", n)
		}
	}
}

func TestMFCCFrames(t *testing.T) {
	e := newDefault(t)

	frames, err := e.MFCC(make([]float32, 44100))
	require.NoError(t, err)
	assert.Len(t, frames, 87)
	assert.Len(t, frames[0], 13)
	assert.Equal(t, 87, e.NumFrames(44100))
	assert.Equal(t, 1, e.NumFrames(1))
}

func TestExtractEmpty(t *testing.T) {
	e := newDefault(t)

	_, err := e.Extract(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = e.MFCC([]float32{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestExtractIsDeterministic(t *testing.T) {
	e := newDefault(t)
	samples := tone(1000, 44100)

	want, err := e.Extract(samples)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Vector, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := e.Extract(samples)
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestExtractSeparatesSpectra(t *testing.T) {
	e := newDefault(t)

	low, err := e.Extract(tone(300, 44100))
	require.NoError(t, err)
	high, err := e.Extract(tone(5000, 44100))
	require.NoError(t, err)

	assert.NotEqual(t, low, high)
	// a louder signal raises the energy coefficient
	assert.Greater(t, low[0], -100*math.Sqrt(128))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero sample rate", mutate: func(c *Config) { c.SampleRate = 0 }},
		{name: "no coefficients", mutate: func(c *Config) { c.NumCoefficients = 0 }},
		{name: "too few mels", mutate: func(c *Config) { c.NumMels = 4 }},
		{name: "odd fft", mutate: func(c *Config) { c.FFTSize = 1023 }},
		{name: "zero hop", mutate: func(c *Config) { c.HopLength = 0 }},
		{name: "negative top db", mutate: func(c *Config) { c.TopDB = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestFingerprint(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "mfcc/v1 sr=22050 n_mfcc=13 n_mels=128 n_fft=2048 hop=512 top_db=80", cfg.Fingerprint())

	cfg.HopLength = 256
	assert.NotEqual(t, DefaultConfig().Fingerprint(), cfg.Fingerprint())
}

package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return samples
}

func TestDecodeWAVAtTargetRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	want := sine(440, 22050, 22050)
	require.NoError(t, WriteWAVFile(path, want, 22050))

	w, err := NewDecoder(22050).DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, 22050, w.SampleRate)
	require.Len(t, w.Samples, len(want))
	for i := range want {
		assert.InDelta(t, want[i], w.Samples[i], 1e-3)
	}
}

func TestDecodeWAVResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone44k.wav")
	require.NoError(t, WriteWAVFile(path, sine(440, 44100, 44100), 44100))

	w, err := NewDecoder(22050).DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 22050, w.SampleRate)
	assert.Len(t, w.Samples, 22050)
}

func TestDecodeUpperCaseExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TONE.WAV")
	require.NoError(t, WriteWAVFile(path, sine(220, 22050, 1000), 22050))

	w, err := NewDecoder(22050).DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, w.Len())
}

func TestDecodeFailures(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.wav")},
		{name: "corrupt wav", path: write("corrupt.wav", []byte("this is not a RIFF file at all"))},
		{name: "empty mp3", path: write("empty.mp3", nil)},
		{name: "corrupt flac", path: write("corrupt.flac", []byte("OggS not flac data"))},
		{name: "unknown codec", path: write("clip.ogg", []byte("OggS"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(22050).DecodeFile(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.path, decodeErr.Path)
		})
	}
}

func TestDecodeMissingFileKeepsCause(t *testing.T) {
	_, err := NewDecoder(22050).DecodeFile(filepath.Join(t.TempDir(), "nope.flac"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDownmixInt(t *testing.T) {
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 8000},
		Data:           []int{16384, 0, -32768, -32768, 0, 32767},
		SourceBitDepth: 16,
	}

	mono := downmixInt(buf)
	require.Len(t, mono, 3)
	assert.InDelta(t, 0.25, mono[0], 1e-9)
	assert.InDelta(t, -1.0, mono[1], 1e-9)
	assert.InDelta(t, 0.5, mono[2], 1e-4)
}

func TestValidateExtension(t *testing.T) {
	allowed := []string{".wav", ".mp3", ".flac"}

	tests := []struct {
		path  string
		valid bool
	}{
		{path: "clip.wav", valid: true},
		{path: "/data/real/CLIP.MP3", valid: true},
		{path: "song.flac", valid: true},
		{path: "notes.txt", valid: false},
		{path: "archive.wav.zip", valid: false},
		{path: "README", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateExtension(tt.path, allowed)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnsupportedExtension)
			}
		})
	}
}

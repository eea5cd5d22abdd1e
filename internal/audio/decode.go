package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// wavFormatPCM and wavFormatExtensible are the WAVE format tags carrying
// integer PCM samples.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Decoder turns audio files into mono waveforms at a fixed sample rate.
// It holds no per-file state and is safe for concurrent use.
type Decoder struct {
	sampleRate int
}

// NewDecoder creates a decoder producing waveforms at sampleRate
func NewDecoder(sampleRate int) *Decoder {
	return &Decoder{sampleRate: sampleRate}
}

// SampleRate returns the output sample rate
func (d *Decoder) SampleRate() int {
	return d.sampleRate
}

// DecodeFile decodes path into a mono waveform. The codec is chosen from
// the file extension. Every failure is returned as a *DecodeError.
func (d *Decoder) DecodeFile(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	var (
		mono []float64
		rate int
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		mono, rate, err = decodeWAV(f)
	case ".mp3":
		mono, rate, err = decodeMP3(f)
	case ".flac":
		mono, rate, err = decodeFLAC(f)
	default:
		err = fmt.Errorf("no decoder for %q files", ext)
	}
	if err != nil {
		return Waveform{}, &DecodeError{Path: path, Err: err}
	}

	if len(mono) == 0 {
		return Waveform{}, decodeErrorf(path, "file contains no audio samples")
	}
	if rate <= 0 {
		return Waveform{}, decodeErrorf(path, "invalid sample rate %d", rate)
	}

	resampled, err := resample(mono, rate, d.sampleRate)
	if err != nil {
		return Waveform{}, &DecodeError{Path: path, Err: err}
	}

	samples := make([]float32, len(resampled))
	for i, s := range resampled {
		samples[i] = float32(s)
	}

	return Waveform{Samples: samples, SampleRate: d.sampleRate}, nil
}

func decodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}

	if decoder.WavAudioFormat != wavFormatPCM && decoder.WavAudioFormat != wavFormatExtensible {
		return nil, 0, fmt.Errorf("unsupported WAV encoding (format tag %d)", decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PCM buffer: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, errors.New("WAV file has no format information")
	}

	return downmixInt(buf), buf.Format.SampleRate, nil
}

// downmixInt averages the interleaved channels of buf into normalized mono.
func downmixInt(buf *goaudio.IntBuffer) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	// 8-bit WAV data is unsigned
	var offset float64
	if bitDepth == 8 {
		offset = scale
	}

	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := range mono {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[i*channels+ch]) - offset) / scale
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// go-mp3 always produces 16-bit little-endian stereo.
func decodeMP3(r io.Reader) ([]float64, int, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open MP3 stream: %w", err)
	}

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	const frameBytes = 4
	mono := make([]float64, len(data)/frameBytes)
	for i := range mono {
		left := int16(uint16(data[i*frameBytes]) | uint16(data[i*frameBytes+1])<<8)
		right := int16(uint16(data[i*frameBytes+2]) | uint16(data[i*frameBytes+3])<<8)
		mono[i] = (float64(left) + float64(right)) / 2 / 32768.0
	}

	return mono, decoder.SampleRate(), nil
}

func decodeFLAC(r io.Reader) ([]float64, int, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open FLAC stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	if channels < 1 {
		return nil, 0, fmt.Errorf("FLAC stream declares %d channels", channels)
	}
	bps := stream.Info.BitsPerSample
	if bps < 4 || bps > 32 {
		return nil, 0, fmt.Errorf("unsupported FLAC bit depth %d", bps)
	}
	scale := float64(int64(1) << (bps - 1))

	var mono []float64
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}
		if len(frame.Subframes) != channels {
			return nil, 0, fmt.Errorf("FLAC frame has %d subframes, want %d", len(frame.Subframes), channels)
		}

		for i := range frame.Subframes[0].Samples {
			var sum float64
			for ch := 0; ch < channels; ch++ {
				sum += float64(frame.Subframes[ch].Samples[i]) / scale
			}
			mono = append(mono, sum/float64(channels))
		}
	}

	return mono, int(stream.Info.SampleRate), nil
}

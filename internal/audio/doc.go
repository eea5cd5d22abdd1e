// Package audio decodes WAV, MP3 and FLAC files into mono waveforms at a fixed
// sample rate and splits them into fixed-length, non-overlapping segments.
// It also encodes segments back to 16-bit PCM WAV.
package audio

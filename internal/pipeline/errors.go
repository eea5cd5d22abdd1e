package pipeline

import (
	"context"
	"errors"

	"github.com/AnkitChauhan19/Audiva/internal/audio"
	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

var (
	// ErrNoSegments is returned when decoded audio is shorter than one
	// analysis segment. It is distinct from audio.ErrDecode.
	ErrNoSegments = errors.New("audio shorter than one segment")

	// ErrNoArtifacts is returned by Predict on a pipeline built without a
	// classifier and scaler.
	ErrNoArtifacts = errors.New("pipeline has no classifier artifacts")
)

// UserMessage maps a prediction error to text suitable for end users
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, audio.ErrUnsupportedExtension):
		return "Please upload a valid audio file (.wav, .mp3 or .flac)."
	case errors.Is(err, audio.ErrDecode):
		return "Unable to process the input audio."
	case errors.Is(err, ErrNoSegments):
		return "The audio is too short to analyse. Please provide a longer recording."
	case errors.Is(err, verdict.ErrNoProbabilities):
		return "Unable to combine the segment predictions for this audio."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled before the audio was processed."
	default:
		return "An error occurred while processing the audio."
	}
}

// FailureReason returns a short label for err, used as a metric label
func FailureReason(err error) string {
	switch {
	case errors.Is(err, audio.ErrUnsupportedExtension):
		return "extension"
	case errors.Is(err, audio.ErrDecode):
		return "decode"
	case errors.Is(err, ErrNoSegments):
		return "too_short"
	case errors.Is(err, verdict.ErrNoProbabilities):
		return "aggregate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

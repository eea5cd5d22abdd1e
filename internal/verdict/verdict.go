package verdict

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the canonical decision boundary: a mean probability
// strictly above it is classified as real speech.
const DefaultThreshold = 0.5

var (
	// ErrNoProbabilities is returned when there is nothing to aggregate,
	// typically because the audio was shorter than one segment.
	ErrNoProbabilities = errors.New("cannot aggregate: no segment probabilities")

	// ErrInvalidProbability is returned for values outside [0, 1] or NaN.
	ErrInvalidProbability = errors.New("invalid probability")
)

// Label is the binary class of a file
type Label int

const (
	Fake Label = iota
	Real
)

func (l Label) String() string {
	switch l {
	case Real:
		return "real"
	case Fake:
		return "fake"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Description is the user-facing name of the label
func (l Label) Description() string {
	if l == Real {
		return "Real"
	}
	return "AI generated"
}

// Verdict is the aggregate decision for one file
type Verdict struct {
	Probability float64 `json:"probability"`
	Label       Label   `json:"label"`
	Threshold   float64 `json:"threshold"`
}

// IsReal reports whether the file was classified as genuine speech
func (v Verdict) IsReal() bool {
	return v.Label == Real
}

// Percent returns the aggregate probability of real speech as a percentage
// rounded to two decimals.
func (v Verdict) Percent() float64 {
	return math.Round(v.Probability*10000) / 100
}

// Recommendation returns advice to show alongside the verdict
func (v Verdict) Recommendation() string {
	if v.IsReal() {
		return "The source of this audio seems genuine."
	}
	return "Be careful while interacting with the source of this audio."
}

// Aggregate averages per-segment probabilities and binarizes the mean
// against threshold. The mean is summed in sorted order so any permutation
// of probs yields the same verdict bit for bit.
func Aggregate(probs []float64, threshold float64) (Verdict, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return Verdict{}, fmt.Errorf("threshold must be between 0 and 1, got %v", threshold)
	}

	if len(probs) == 0 {
		return Verdict{}, ErrNoProbabilities
	}

	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Verdict{}, fmt.Errorf("%w at segment %d: %v", ErrInvalidProbability, i, p)
		}
	}

	sorted := slices.Clone(probs)
	slices.Sort(sorted)

	mean := floats.Sum(sorted) / float64(len(sorted))

	label := Fake
	if mean > threshold {
		label = Real
	}

	return Verdict{Probability: mean, Label: label, Threshold: threshold}, nil
}

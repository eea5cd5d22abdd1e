package dataset

import (
	"errors"
	"fmt"
	"math"

	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

// ErrInvalid is returned by Validate for malformed datasets
var ErrInvalid = errors.New("invalid dataset")

// Dataset holds one feature vector per file and its label, as parallel
// slices.
type Dataset struct {
	Fingerprint string      `msgpack:"feature_fingerprint"`
	Features    [][]float64 `msgpack:"features"`
	Labels      []int       `msgpack:"labels"`
}

// Len returns the number of examples
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Dim returns the feature vector length, or 0 for an empty dataset
func (d *Dataset) Dim() int {
	if len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0])
}

// Counts returns the number of examples per label
func (d *Dataset) Counts() map[verdict.Label]int {
	counts := make(map[verdict.Label]int)
	for _, l := range d.Labels {
		counts[verdict.Label(l)]++
	}
	return counts
}

// Append adds one example
func (d *Dataset) Append(v []float64, label verdict.Label) {
	d.Features = append(d.Features, v)
	d.Labels = append(d.Labels, int(label))
}

// Validate checks that features and labels line up, every vector has the
// same length, every value is finite and every label is 0 or 1.
func (d *Dataset) Validate() error {
	if len(d.Features) != len(d.Labels) {
		return fmt.Errorf("%w: %d feature rows but %d labels", ErrInvalid, len(d.Features), len(d.Labels))
	}

	dim := d.Dim()
	for i, row := range d.Features {
		if len(row) != dim {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalid, i, len(row), dim)
		}
		for j, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: row %d column %d is %v", ErrInvalid, i, j, x)
			}
		}
		if l := d.Labels[i]; l != int(verdict.Fake) && l != int(verdict.Real) {
			return fmt.Errorf("%w: row %d has label %d", ErrInvalid, i, l)
		}
	}
	return nil
}

// subset copies the rows at idx into a new dataset
func (d *Dataset) subset(idx []int) *Dataset {
	out := &Dataset{
		Fingerprint: d.Fingerprint,
		Features:    make([][]float64, len(idx)),
		Labels:      make([]int, len(idx)),
	}
	for k, i := range idx {
		out.Features[k] = d.Features[i]
		out.Labels[k] = d.Labels[i]
	}
	return out
}

package scaler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmpty is returned when fitting on no rows.
	ErrEmpty = errors.New("scaler: no rows to fit")

	// ErrMismatch is returned when the scaler was fit on vectors of a
	// different shape or extraction setup than the ones it is applied to.
	ErrMismatch = errors.New("scaler: mismatched feature configuration")
)

// State is a fitted per-column standardization
type State struct {
	Mean        []float64 `json:"mean"`
	Scale       []float64 `json:"scale"`
	NumSamples  int       `json:"n_samples_seen"`
	Fingerprint string    `json:"feature_fingerprint,omitempty"`
}

// Fit computes the population mean and standard deviation of every column.
// Columns with zero deviation get a scale of 1 so they pass through centred.
func Fit(rows [][]float64) (*State, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("scaler: rows have no columns")
	}

	state := &State{
		Mean:       make([]float64, dim),
		Scale:      make([]float64, dim),
		NumSamples: len(rows),
	}

	column := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, row := range rows {
			if len(row) != dim {
				return nil, fmt.Errorf("scaler: row %d has %d columns, want %d", i, len(row), dim)
			}
			column[i] = row[j]
		}

		mean, std := stat.PopMeanStdDev(column, nil)
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			return nil, fmt.Errorf("scaler: column %d contains non-finite values", j)
		}
		if std == 0 {
			std = 1
		}
		state.Mean[j] = mean
		state.Scale[j] = std
	}

	return state, nil
}

// Dim returns the vector length the scaler was fit on
func (s *State) Dim() int {
	return len(s.Mean)
}

// TransformVector returns (v - mean) / scale as a new slice
func (s *State) TransformVector(v []float64) ([]float64, error) {
	if len(v) != len(s.Mean) {
		return nil, fmt.Errorf("%w: vector has %d values, scaler expects %d", ErrMismatch, len(v), len(s.Mean))
	}

	out := make([]float64, len(v))
	for j, x := range v {
		out[j] = (x - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// Transform applies TransformVector to every row
func (s *State) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.TransformVector(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// Check verifies the scaler matches vectors of length dim produced with the
// given feature fingerprint. An empty fingerprint on either side skips the
// fingerprint comparison.
func (s *State) Check(fingerprint string, dim int) error {
	if s.Dim() != dim {
		return fmt.Errorf("%w: scaler fit on %d features, extractor produces %d", ErrMismatch, s.Dim(), dim)
	}

	if s.Fingerprint != "" && fingerprint != "" && s.Fingerprint != fingerprint {
		return fmt.Errorf("%w: scaler fit with %q, extractor uses %q", ErrMismatch, s.Fingerprint, fingerprint)
	}

	return nil
}

// Validate checks the internal consistency of a loaded state
func (s *State) Validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler has no columns")
	}
	if len(s.Scale) != len(s.Mean) {
		return fmt.Errorf("scaler has %d means but %d scales", len(s.Mean), len(s.Scale))
	}
	for j, scale := range s.Scale {
		if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
			return fmt.Errorf("scaler column %d has invalid scale %v", j, scale)
		}
		if math.IsNaN(s.Mean[j]) || math.IsInf(s.Mean[j], 0) {
			return fmt.Errorf("scaler column %d has invalid mean %v", j, s.Mean[j])
		}
	}
	return nil
}

// Save writes the state as JSON
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scaler: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scaler %s: %w", path, err)
	}
	return nil
}

// Load reads and validates a state written by Save
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler %s: %w", path, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scaler %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scaler %s: %w", path, err)
	}
	return &s, nil
}

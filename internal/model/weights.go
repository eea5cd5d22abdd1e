package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Artifact formats
const (
	FormatJSON      = "json"
	FormatQuantized = "quantized"
)

const weightsVersion = "audiva-lstm/v1"

// Weights is the on-disk form of a trained network. Matrices use the Keras
// layout: LSTM kernels are [input][4*units] with gates ordered i, f, c, o,
// and dense kernels are [in][out].
type Weights struct {
	Format    string         `json:"format"`
	Timesteps int            `json:"timesteps"`
	LSTM      LSTMWeights    `json:"lstm"`
	Dense     []DenseWeights `json:"dense"`
}

// LSTMWeights holds the recurrent layer parameters
type LSTMWeights struct {
	Units           int         `json:"units"`
	Kernel          [][]float64 `json:"kernel"`
	RecurrentKernel [][]float64 `json:"recurrent_kernel"`
	Bias            []float64   `json:"bias"`
}

// DenseWeights holds one fully connected layer
type DenseWeights struct {
	Activation string      `json:"activation"`
	Kernel     [][]float64 `json:"kernel"`
	Bias       []float64   `json:"bias"`
}

// NewNetwork validates w and builds a network from it
func NewNetwork(w *Weights) (*Network, error) {
	if w.Format != weightsVersion {
		return nil, fmt.Errorf("unsupported weights format %q, want %q", w.Format, weightsVersion)
	}
	if w.Timesteps < 1 {
		return nil, fmt.Errorf("timesteps must be positive, got %d", w.Timesteps)
	}

	units := w.LSTM.Units
	if units < 1 {
		return nil, fmt.Errorf("lstm units must be positive, got %d", units)
	}

	kernel, err := matrix("lstm kernel", w.LSTM.Kernel, -1, 4*units)
	if err != nil {
		return nil, err
	}
	inputDim, _ := kernel.Dims()

	recurrent, err := matrix("lstm recurrent kernel", w.LSTM.RecurrentKernel, units, 4*units)
	if err != nil {
		return nil, err
	}

	if len(w.LSTM.Bias) != 4*units {
		return nil, fmt.Errorf("lstm bias has %d values, want %d", len(w.LSTM.Bias), 4*units)
	}

	if len(w.Dense) == 0 {
		return nil, fmt.Errorf("network has no dense layers")
	}

	n := &Network{
		timesteps: w.Timesteps,
		inputDim:  inputDim,
		units:     units,
		kernel:    kernel,
		recurrent: recurrent,
		bias:      vector(w.LSTM.Bias),
	}

	in := units
	for i, d := range w.Dense {
		name := fmt.Sprintf("dense %d", i)

		act := activation(d.Activation)
		if !act.valid() {
			return nil, fmt.Errorf("%s: unknown activation %q", name, d.Activation)
		}

		k, err := matrix(name+" kernel", d.Kernel, in, -1)
		if err != nil {
			return nil, err
		}
		_, out := k.Dims()

		if len(d.Bias) != out {
			return nil, fmt.Errorf("%s: bias has %d values, want %d", name, len(d.Bias), out)
		}

		n.layers = append(n.layers, denseLayer{kernel: k, bias: vector(d.Bias), activation: act})
		in = out
	}

	if in != 1 {
		return nil, fmt.Errorf("final layer has %d outputs, want 1", in)
	}

	return n, nil
}

// matrix copies rows into a dense matrix, checking it is rectangular and,
// where rows or cols is not negative, of the expected size.
func matrix(name string, data [][]float64, rows, cols int) (*mat.Dense, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	if rows >= 0 && len(data) != rows {
		return nil, fmt.Errorf("%s has %d rows, want %d", name, len(data), rows)
	}
	if cols >= 0 && len(data[0]) != cols {
		return nil, fmt.Errorf("%s has %d columns, want %d", name, len(data[0]), cols)
	}

	width := len(data[0])
	m := mat.NewDense(len(data), width, nil)
	for i, row := range data {
		if len(row) != width {
			return nil, fmt.Errorf("%s row %d has %d columns, want %d", name, i, len(row), width)
		}
		m.SetRow(i, row)
	}
	return m, nil
}

func vector(data []float64) *mat.VecDense {
	v := make([]float64, len(data))
	copy(v, data)
	return mat.NewVecDense(len(v), v)
}

// ReadWeights reads a JSON weights file without building the network
func ReadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	return &w, nil
}

// Save writes w as JSON
func (w *Weights) Save(path string) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model %s: %w", path, err)
	}
	return nil
}

// FormatForPath infers the artifact format from the file extension
func FormatForPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".qnt":
		return FormatQuantized, nil
	default:
		return "", fmt.Errorf("cannot infer model format from extension %q", ext)
	}
}

// Load reads a classifier artifact. An empty format is inferred from the
// file extension.
func Load(path, format string) (*Network, error) {
	if format == "" {
		var err error
		if format, err = FormatForPath(path); err != nil {
			return nil, err
		}
	}

	var (
		w   *Weights
		err error
	)
	switch format {
	case FormatJSON:
		w, err = ReadWeights(path)
	case FormatQuantized:
		w, err = readQuantized(path)
	default:
		return nil, fmt.Errorf("unknown model format %q", format)
	}
	if err != nil {
		return nil, err
	}

	n, err := NewNetwork(w)
	if err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return n, nil
}

package model

import (
	"fmt"
	"math"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

const quantizedVersion = "audiva-lstm-q8/v1"

// Quantized is the portable form of Weights: every kernel is stored as int8
// with one symmetric scale per tensor, biases as float32.
type Quantized struct {
	Format    string           `msgpack:"format"`
	Timesteps int              `msgpack:"timesteps"`
	Units     int              `msgpack:"units"`
	Kernel    QuantizedTensor  `msgpack:"kernel"`
	Recurrent QuantizedTensor  `msgpack:"recurrent_kernel"`
	Bias      []float32        `msgpack:"bias"`
	Dense     []QuantizedDense `msgpack:"dense"`
}

// QuantizedDense is one fully connected layer of a Quantized network
type QuantizedDense struct {
	Activation string          `msgpack:"activation"`
	Kernel     QuantizedTensor `msgpack:"kernel"`
	Bias       []float32       `msgpack:"bias"`
}

// QuantizedTensor stores round(v/Scale) row-major
type QuantizedTensor struct {
	Rows  int     `msgpack:"rows"`
	Cols  int     `msgpack:"cols"`
	Scale float64 `msgpack:"scale"`
	Data  []int8  `msgpack:"data"`
}

// Quantize converts w to the portable int8 form. w is validated first.
func Quantize(w *Weights) (*Quantized, error) {
	if _, err := NewNetwork(w); err != nil {
		return nil, err
	}

	q := &Quantized{
		Format:    quantizedVersion,
		Timesteps: w.Timesteps,
		Units:     w.LSTM.Units,
		Kernel:    quantizeTensor(w.LSTM.Kernel),
		Recurrent: quantizeTensor(w.LSTM.RecurrentKernel),
		Bias:      toFloat32(w.LSTM.Bias),
	}
	for _, d := range w.Dense {
		q.Dense = append(q.Dense, QuantizedDense{
			Activation: d.Activation,
			Kernel:     quantizeTensor(d.Kernel),
			Bias:       toFloat32(d.Bias),
		})
	}
	return q, nil
}

// Dequantize expands q back into Weights
func (q *Quantized) Dequantize() (*Weights, error) {
	if q.Format != quantizedVersion {
		return nil, fmt.Errorf("unsupported quantized format %q, want %q", q.Format, quantizedVersion)
	}

	kernel, err := q.Kernel.dequantize()
	if err != nil {
		return nil, fmt.Errorf("lstm kernel: %w", err)
	}
	recurrent, err := q.Recurrent.dequantize()
	if err != nil {
		return nil, fmt.Errorf("lstm recurrent kernel: %w", err)
	}

	w := &Weights{
		Format:    weightsVersion,
		Timesteps: q.Timesteps,
		LSTM: LSTMWeights{
			Units:           q.Units,
			Kernel:          kernel,
			RecurrentKernel: recurrent,
			Bias:            toFloat64(q.Bias),
		},
	}

	for i, d := range q.Dense {
		k, err := d.Kernel.dequantize()
		if err != nil {
			return nil, fmt.Errorf("dense %d kernel: %w", i, err)
		}
		w.Dense = append(w.Dense, DenseWeights{
			Activation: d.Activation,
			Kernel:     k,
			Bias:       toFloat64(d.Bias),
		})
	}
	return w, nil
}

// Save writes q as msgpack
func (q *Quantized) Save(path string) error {
	data, err := msgpack.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to encode quantized model: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write quantized model %s: %w", path, err)
	}
	return nil
}

func readQuantized(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var q Quantized
	if err := msgpack.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to parse quantized model %s: %w", path, err)
	}

	w, err := q.Dequantize()
	if err != nil {
		return nil, fmt.Errorf("invalid quantized model %s: %w", path, err)
	}
	return w, nil
}

func quantizeTensor(data [][]float64) QuantizedTensor {
	t := QuantizedTensor{Rows: len(data)}
	if len(data) > 0 {
		t.Cols = len(data[0])
	}

	var maxAbs float64
	for _, row := range data {
		for _, v := range row {
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}
	t.Scale = maxAbs / 127

	t.Data = make([]int8, 0, t.Rows*t.Cols)
	for _, row := range data {
		for _, v := range row {
			var q float64
			if t.Scale > 0 {
				q = math.Max(-127, math.Min(127, math.Round(v/t.Scale)))
			}
			t.Data = append(t.Data, int8(q))
		}
	}
	return t
}

func (t QuantizedTensor) dequantize() ([][]float64, error) {
	if t.Rows < 1 || t.Cols < 1 || len(t.Data) != t.Rows*t.Cols {
		return nil, fmt.Errorf("tensor %dx%d carries %d values", t.Rows, t.Cols, len(t.Data))
	}

	out := make([][]float64, t.Rows)
	for i := range out {
		out[i] = make([]float64, t.Cols)
		for j := range out[i] {
			out[i][j] = float64(t.Data[i*t.Cols+j]) * t.Scale
		}
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

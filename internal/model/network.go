package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInputShape is returned when a vector does not match the network input.
var ErrInputShape = errors.New("model: input vector has wrong length")

// Classifier maps one scaled feature vector to the probability that the
// segment it came from is real speech.
type Classifier interface {
	Predict(vector []float64) (float64, error)
}

// Network is an LSTM followed by fully connected layers. The input vector
// is read as Timesteps steps of InputDim features. Dropout layers used in
// training are the identity at inference and are not represented.
//
// Network is immutable after construction and safe for concurrent use.
type Network struct {
	timesteps int
	inputDim  int
	units     int

	kernel    *mat.Dense    // inputDim x 4*units, gates i, f, c, o
	recurrent *mat.Dense    // units x 4*units
	bias      *mat.VecDense // 4*units

	layers []denseLayer
}

type denseLayer struct {
	kernel     *mat.Dense // in x out
	bias       *mat.VecDense
	activation activation
}

type activation string

const (
	activationLinear  activation = "linear"
	activationReLU    activation = "relu"
	activationSigmoid activation = "sigmoid"
	activationTanh    activation = "tanh"
)

func (a activation) valid() bool {
	switch a {
	case activationLinear, activationReLU, activationSigmoid, activationTanh:
		return true
	}
	return false
}

func (a activation) apply(x float64) float64 {
	switch a {
	case activationReLU:
		return math.Max(0, x)
	case activationSigmoid:
		return sigmoid(x)
	case activationTanh:
		return math.Tanh(x)
	default:
		return x
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// InputLen returns the vector length Predict accepts
func (n *Network) InputLen() int {
	return n.timesteps * n.inputDim
}

// Units returns the LSTM width
func (n *Network) Units() int {
	return n.units
}

// Predict runs the network over vector and returns the output of the final
// single-unit layer.
func (n *Network) Predict(vector []float64) (float64, error) {
	if len(vector) != n.InputLen() {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrInputShape, len(vector), n.InputLen())
	}

	u := n.units
	h := mat.NewVecDense(u, nil)
	c := make([]float64, u)

	var z, rec mat.VecDense
	for t := 0; t < n.timesteps; t++ {
		step := vector[t*n.inputDim : (t+1)*n.inputDim : (t+1)*n.inputDim]
		x := mat.NewVecDense(n.inputDim, step)

		z.MulVec(n.kernel.T(), x)
		rec.MulVec(n.recurrent.T(), h)
		z.AddVec(&z, &rec)
		z.AddVec(&z, n.bias)

		for j := 0; j < u; j++ {
			in := sigmoid(z.AtVec(j))
			forget := sigmoid(z.AtVec(u + j))
			cand := math.Tanh(z.AtVec(2*u + j))
			out := sigmoid(z.AtVec(3*u + j))

			c[j] = forget*c[j] + in*cand
			h.SetVec(j, out*math.Tanh(c[j]))
		}
	}

	var a mat.Vector = h
	for _, layer := range n.layers {
		y := mat.NewVecDense(layer.bias.Len(), nil)
		y.MulVec(layer.kernel.T(), a)
		y.AddVec(y, layer.bias)
		for j := 0; j < y.Len(); j++ {
			y.SetVec(j, layer.activation.apply(y.AtVec(j)))
		}
		a = y
	}

	p := a.AtVec(0)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("model produced non-finite output %v", p)
	}
	return p, nil
}

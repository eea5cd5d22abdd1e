package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3
	melLogMinHz   = 1000.0
	melLogMin     = melLogMinHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

// hannWindow generates a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hzToMel converts frequency in Hz to the Slaney mel scale.
func hzToMel(hz float64) float64 {
	if hz >= melLogMinHz {
		return melLogMin + math.Log(hz/melLogMinHz)/melLogStep
	}
	return hz / melLinearStep
}

// melToHz converts a Slaney mel value back to Hz.
func melToHz(mel float64) float64 {
	if mel >= melLogMin {
		return melLogMinHz * math.Exp(melLogStep*(mel-melLogMin))
	}
	return mel * melLinearStep
}

// melEdges returns numMels+2 band edge frequencies in Hz, equally spaced on
// the mel scale between 0 and highHz.
func melEdges(numMels int, highHz float64) []float64 {
	highMel := hzToMel(highHz)
	edges := make([]float64, numMels+2)
	step := highMel / float64(numMels+1)
	for i := range edges {
		edges[i] = melToHz(float64(i) * step)
	}
	return edges
}

// melFilterBank creates the [numMels][fftSize/2+1] triangular filterbank
// covering 0 Hz to Nyquist. Each filter is scaled to unit area (Slaney
// normalization).
func melFilterBank(numMels, fftSize, sampleRate int) *mat.Dense {
	bins := fftSize/2 + 1
	nyquist := float64(sampleRate) / 2
	edges := melEdges(numMels, nyquist)

	binHz := make([]float64, bins)
	for k := range binHz {
		binHz[k] = nyquist * float64(k) / float64(bins-1)
	}

	bank := mat.NewDense(numMels, bins, nil)
	for m := 0; m < numMels; m++ {
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		norm := 2.0 / (upper - lower)

		for k, f := range binHz {
			rising := (f - lower) / (center - lower)
			falling := (upper - f) / (upper - center)
			w := math.Min(rising, falling)
			if w > 0 {
				bank.Set(m, k, w*norm)
			}
		}
	}
	return bank
}

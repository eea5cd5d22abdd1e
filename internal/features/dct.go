package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// dctBasis returns the first k rows of the orthonormal DCT-II matrix of
// size n. Multiplying it with a column of n log-mel energies yields k
// cepstral coefficients.
//
// gonum's dsp/fourier DCT is the type-I transform, so the type-II basis is
// built directly.
func dctBasis(k, n int) *mat.Dense {
	basis := mat.NewDense(k, n, nil)
	first := math.Sqrt(1 / float64(n))
	rest := math.Sqrt(2 / float64(n))

	for row := 0; row < k; row++ {
		scale := rest
		if row == 0 {
			scale = first
		}
		for col := 0; col < n; col++ {
			basis.Set(row, col, scale*math.Cos(math.Pi*float64(row)*(2*float64(col)+1)/(2*float64(n))))
		}
	}
	return basis
}

package grouplasso

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// scaling records how the working design was standardized so coefficients
// can be mapped back. A nil *scaling is the identity.
type scaling struct {
	means []float64 // Zero unless columns were centered
	stds  []float64
	yMean float64
}

// standardize scales the columns of X (in-place) to unit weighted standard
// deviation. With center set, columns and y are also centered on their
// weighted means, which leaves room for an intercept.
func standardize(X *mat.Dense, y, w []float64, center bool) *scaling {
	nSamples, nFeatures := X.Dims()
	sumw := floats.Sum(w)
	sc := &scaling{
		means: make([]float64, nFeatures),
		stds:  make([]float64, nFeatures),
	}

	col := make([]float64, nSamples)
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)

		mean := floats.Dot(w, col) / sumw
		variance := 0.0
		for i, v := range col {
			variance += w[i] * (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / sumw)
		if std < 1e-8 {
			std = 1.0
		}

		if center {
			floats.AddConst(-mean, col)
			sc.means[j] = mean
		}
		floats.Scale(1/std, col)
		sc.stds[j] = std
		X.SetCol(j, col)
	}

	if center {
		sc.yMean = floats.Dot(w, y) / sumw
		floats.AddConst(-sc.yMean, y)
	}
	return sc
}

// toStandard converts original-scale coefficients to the working scale.
func (sc *scaling) toStandard(beta []float64) {
	if sc == nil {
		return
	}
	floats.Mul(beta, sc.stds)
}

// toOriginal converts working-scale coefficients (in-place) and returns the
// matching intercept.
func (sc *scaling) toOriginal(beta []float64) float64 {
	if sc == nil {
		return 0
	}
	floats.Div(beta, sc.stds)
	return sc.yMean - floats.Dot(sc.means, beta)
}

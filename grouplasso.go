// Package grouplasso fits generalized linear models under a sparse group-lasso
// penalty with per-group adaptive weights, using accelerated block
// proximal-gradient descent along a path of penalty values.
package grouplasso

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Path represents a fitted group-lasso path.
type Path struct {
	Lambda    []float64   // Penalty values, as supplied
	Beta      *mat.Dense  // nlam x ncol coefficients; row k solves Lambda[k]
	Intercept []float64   // Per step; zero unless Standardize centered the data
	Steps     []StepStats // Training history, one entry per path step
	Groups    []Group
	Family    Family
}

// Len returns the number of path steps.
func (p *Path) Len() int { return len(p.Lambda) }

// Coefficients returns a copy of the solution at the given step.
func (p *Path) Coefficients(step int) []float64 {
	return mat.Row(nil, step, p.Beta)
}

// NonZeroGroups returns the indices of groups with a non-zero solution at step.
func (p *Path) NonZeroGroups(step int) []int {
	beta := p.Beta.RawRowView(step)
	var idx []int
	for i, g := range p.Groups {
		if !allZero(beta[g.Start:g.End()]) {
			idx = append(idx, i)
		}
	}
	return idx
}

// LinearPredictor returns X*beta + intercept for the given step.
func (p *Path) LinearPredictor(step int, X *mat.Dense) []float64 {
	nSamples, nFeatures := X.Dims()
	if nFeatures != p.Beta.RawMatrix().Cols {
		panic(fmt.Sprintf("grouplasso: X has %d columns, path has %d", nFeatures, p.Beta.RawMatrix().Cols))
	}
	eta := mat.NewVecDense(nSamples, nil)
	eta.MulVec(X, p.Beta.RowView(step))
	out := eta.RawVector().Data
	floats.AddConst(p.Intercept[step], out)
	return out
}

// Predict returns fitted means (the link applied to the linear predictor).
func (p *Path) Predict(step int, X *mat.Dense) []float64 {
	eta := p.LinearPredictor(step, X)
	expect := make([]float64, len(eta))
	p.Family.Link.Transform(eta, expect)
	return expect
}

// Score returns the R² score for given data.
func (p *Path) Score(step int, X *mat.Dense, y []float64) float64 {
	return rSquared(y, p.Predict(step, X))
}

// MSE returns the mean squared error for given data.
func (p *Path) MSE(step int, X *mat.Dense, y []float64) float64 {
	return meanSquaredError(y, p.Predict(step, X))
}

// MAE returns the mean absolute error for given data.
func (p *Path) MAE(step int, X *mat.Dense, y []float64) float64 {
	return meanAbsoluteError(y, p.Predict(step, X))
}

// Err reports the steps that hit OuterIter before meeting OuterThresh, as a
// *ConvergenceError. It returns nil when every step converged.
func (p *Path) Err() error {
	var ce *ConvergenceError
	for _, st := range p.Steps {
		if st.Converged {
			continue
		}
		if ce == nil {
			ce = &ConvergenceError{}
		}
		ce.Steps = append(ce.Steps, st.Step)
		ce.Lambdas = append(ce.Lambdas, st.Lambda)
	}
	if ce == nil {
		return nil
	}
	return ce
}

// --- Evaluation Metrics ---

// meanSquaredError calculates MSE
func meanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) != len(yPred) {
		panic("input lengths must match")
	}
	sum := 0.0
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue))
}

// rSquared calculates coefficient of determination
func rSquared(yTrue, yPred []float64) float64 {
	if len(yTrue) != len(yPred) {
		panic("input lengths must match")
	}
	mean := floats.Sum(yTrue) / float64(len(yTrue))

	tss := 0.0 // Total sum of squares
	rss := 0.0 // Residual sum of squares
	for i := range yTrue {
		tss += (yTrue[i] - mean) * (yTrue[i] - mean)
		diff := yTrue[i] - yPred[i]
		rss += diff * diff
	}

	if tss < 1e-15 {
		return 1
	}
	return 1 - rss/tss
}

// meanAbsoluteError calculates MAE
func meanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) != len(yPred) {
		panic("input lengths must match")
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

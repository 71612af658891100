package grouplasso

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// orthoDesign has orthonormal columns.
func orthoDesign() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		0.5, 0.5,
		0.5, -0.5,
		0.5, 0.5,
		0.5, -0.5,
	})
}

func tightConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Thresh = 1e-12
	cfg.OuterThresh = 1e-12
	cfg.InnerIter = 10000
	cfg.OuterIter = 10000
	return cfg
}

// randomProblem draws a Gaussian design with three groups of two columns,
// the first strong, the second weak and the third pure noise.
func randomProblem(seed int64, nSamples int) *Problem {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(nSamples, 6, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < 6; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
	}
	truth := []float64{2, -1.5, 0.4, 0.3, 0, 0}
	y := make([]float64, nSamples)
	for i := range y {
		y[i] = floats.Dot(X.RawRowView(i), truth) + 0.5*rng.NormFloat64()
	}
	return &Problem{
		X:      X,
		Y:      y,
		Groups: ContiguousGroups(2, 2, 2),
	}
}

func TestOrdinaryLeastSquaresAtZeroPenalty(t *testing.T) {
	X := orthoDesign()
	y := []float64{1, 2, 3, 4}

	path, err := Solve(&Problem{
		X:      X,
		Y:      y,
		Groups: ContiguousGroups(1, 1),
		Lambda: []float64{0},
	}, tightConfig())
	require.NoError(t, err)

	// Orthonormal columns: OLS is X'y.
	var want mat.VecDense
	want.MulVec(X.T(), mat.NewVecDense(4, y))
	coef := path.Coefficients(0)
	tol := 1e-10
	for j := range coef {
		assert.InDelta(t, want.AtVec(j), coef[j], tol, "coefficient %d", j)
	}
	assert.NoError(t, path.Err())
	assert.Zero(t, path.Steps[0].LineSearchFailures)

	// X'y = (5, -1) and the fitted values match the OLS fit.
	pred := path.Predict(0, X)
	assert.InDeltaSlice(t, []float64{2, 3, 2, 3}, pred, 1e-6)
}

func TestOrdinaryLeastSquaresCorrelatedDesign(t *testing.T) {
	p := randomProblem(8, 40)
	p.Lambda = []float64{0}

	path, err := Solve(p, tightConfig())
	require.NoError(t, err)
	require.NoError(t, path.Err())

	// Normal equations X'X b = X'y.
	var xtx mat.Dense
	xtx.Mul(p.X.T(), p.X)
	var xty, want mat.VecDense
	xty.MulVec(p.X.T(), mat.NewVecDense(len(p.Y), p.Y))
	require.NoError(t, want.SolveVec(&xtx, &xty))

	coef := path.Coefficients(0)
	for j := range coef {
		assert.InDelta(t, want.AtVec(j), coef[j], 1e-8, "coefficient %d", j)
	}
}

func TestHighRegularization(t *testing.T) {
	X := orthoDesign()
	y := []float64{1, 2, 3, 4}

	// Screening gradients at zero are X'y/4 = (1.25, -0.25); both pass for λ = 2.
	path, err := Solve(&Problem{
		X:      X,
		Y:      y,
		Groups: ContiguousGroups(1, 1),
		Lambda: []float64{2},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0}, path.Coefficients(0))
	assert.Empty(t, path.NonZeroGroups(0))
	assert.True(t, path.Steps[0].Converged)
	assert.Equal(t, 0, path.Steps[0].ActiveGroups)
}

func TestHighRegularizationStandardized(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
		7, 8,
	})
	y := []float64{3, 7, 11, 15}
	meanY := floats.Sum(y) / float64(len(y))

	cfg := NewDefaultConfig()
	cfg.Standardize = true

	path, err := Solve(&Problem{X: X, Y: y, Groups: ContiguousGroups(1, 1), Lambda: []float64{100}}, cfg)
	require.NoError(t, err)

	tol := 1e-12
	for j, w := range path.Coefficients(0) {
		assert.InDelta(t, 0, w, tol, "weight %d", j)
	}
	assert.InDelta(t, meanY, path.Intercept[0], tol)
}

func TestStandardization(t *testing.T) {
	// Create dataset with different scales
	X := mat.NewDense(4, 2, []float64{
		1, 200,
		3, 400,
		5, 600,
		7, 800,
	})
	y := []float64{3, 7, 11, 15}

	cfg := NewDefaultConfig()
	cfg.Standardize = true

	path, err := Solve(&Problem{X: X, Y: y, Groups: ContiguousGroups(1, 1), Lambda: []float64{0.1}}, cfg)
	require.NoError(t, err)

	// Predictions should be reasonable
	for i, pred := range path.Predict(0, X) {
		assert.InDelta(t, y[i], pred, 1.0, "prediction %d", i)
	}
	assert.Greater(t, path.Score(0, X, y), 0.9)
}

func TestStandardizationRoundTrip(t *testing.T) {
	p := randomProblem(3, 60)
	// Shift and stretch the design; the unpenalized fit must not change.
	shifted := mat.DenseCopyOf(p.X)
	for j := 0; j < 6; j++ {
		col := mat.Col(nil, j, shifted)
		for i := range col {
			col[i] = 3*col[i] + 1
		}
		shifted.SetCol(j, col)
	}
	// The plain fit has no intercept, so give it an unpenalized column of ones.
	nSamples, _ := p.X.Dims()
	withOnes := mat.NewDense(nSamples, 7, nil)
	withOnes.Augment(shifted, mat.NewDense(nSamples, 1, ones(nSamples)))

	cfg := tightConfig()
	cfg.Standardize = true
	std, err := Solve(&Problem{X: shifted, Y: p.Y, Groups: p.Groups, Lambda: []float64{0}}, cfg)
	require.NoError(t, err)

	plainCfg := tightConfig()
	plain, err := Solve(&Problem{
		X:      withOnes,
		Y:      p.Y,
		Groups: ContiguousGroups(2, 2, 2, 1),
		Lambda: []float64{0},
	}, plainCfg)
	require.NoError(t, err)

	assert.InDeltaSlice(t, std.Predict(0, shifted), plain.Predict(0, withOnes), 1e-5)
}

func TestConvergence(t *testing.T) {
	p := randomProblem(11, 100)
	p.Lambda = []float64{0.5, 0.2, 0.1, 0.05}

	cfg := NewDefaultConfig()
	cfg.Standardize = true

	path, err := Solve(p, cfg)
	require.NoError(t, err)
	require.Equal(t, 4, path.Len())

	// Should converge before max iterations
	assert.NoError(t, path.Err())
	for _, st := range path.Steps {
		assert.True(t, st.Converged, "step %d", st.Step)
		assert.Less(t, st.RefinePasses, cfg.OuterIter)
		assert.GreaterOrEqual(t, st.FullScans, 1)
	}

	// The strong group survives everywhere; the noise group is dropped at the top of the path.
	assert.Contains(t, path.NonZeroGroups(3), 0)
	assert.NotContains(t, path.NonZeroGroups(0), 2)
	assert.Greater(t, path.Score(3, p.X, p.Y), path.Score(0, p.X, p.Y))
	assert.Less(t, path.MSE(3, p.X, p.Y), path.MSE(0, p.X, p.Y))
	assert.Less(t, path.MAE(3, p.X, p.Y), path.MAE(0, p.X, p.Y))
}

func TestNonConvergenceIsReported(t *testing.T) {
	p := randomProblem(5, 40)
	p.Lambda = []float64{0.05, 0.01}

	cfg := NewDefaultConfig()
	cfg.InnerIter = 1
	cfg.OuterIter = 1
	cfg.OuterThresh = 0

	path, err := Solve(p, cfg)
	require.NoError(t, err)

	err = path.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonConvergence)
	var ce *ConvergenceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []int{0, 1}, ce.Steps)
	assert.Equal(t, []float64{0.05, 0.01}, ce.Lambdas)

	// The last iterate is still returned.
	assert.NotEmpty(t, path.NonZeroGroups(1))
	for _, st := range path.Steps {
		assert.Positive(t, st.InnerCapHits)
	}
}

func TestBinomialPath(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	nSamples := 200
	X := mat.NewDense(nSamples, 4, nil)
	y := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		eta := 1.5*X.At(i, 0) - X.At(i, 1)
		if rng.Float64() < 1/(1+math.Exp(-eta)) {
			y[i] = 1
		}
	}

	path, err := Solve(&Problem{
		X:      X,
		Y:      y,
		Groups: ContiguousGroups(2, 2),
		Lambda: []float64{0.2, 0.05, 0.01},
		Family: Binomial(),
	}, nil)
	require.NoError(t, err)

	// Null deviance per observation is log 2.
	assert.Less(t, path.Steps[2].Loss, math.Log(2))
	assert.Contains(t, path.NonZeroGroups(2), 0)
	for _, p := range path.Predict(2, X) {
		assert.True(t, p > 0 && p < 1)
	}
}

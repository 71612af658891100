package grouplasso

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Link maps a linear predictor to the fitted mean, writing into expect.
// Implementations must be deterministic and touch nothing but expect.
type Link interface {
	Transform(eta, expect []float64)
}

// Loss evaluates the weighted negative log-likelihood of the fitted mean,
// normalized by the sum of the weights. The result must be finite and
// non-negative.
type Loss interface {
	Evaluate(expect, y, w []float64) float64
}

// Gradient writes the working residual ldot[k] = dLoss/deta[k] for the
// fitted mean produced by the family's link.
type Gradient interface {
	Residual(expect, y, w, ldot []float64)
}

// ResponseChecker is implemented by losses that are only defined for some
// responses. Problem.Validate rejects a response the family's loss refuses.
type ResponseChecker interface {
	CheckResponse(y []float64) error
}

// LinkFunc adapts an ordinary function to the Link interface.
type LinkFunc func(eta, expect []float64)

// Transform calls f(eta, expect).
func (f LinkFunc) Transform(eta, expect []float64) { f(eta, expect) }

// LossFunc adapts an ordinary function to the Loss interface.
type LossFunc func(expect, y, w []float64) float64

// Evaluate calls f(expect, y, w).
func (f LossFunc) Evaluate(expect, y, w []float64) float64 { return f(expect, y, w) }

// GradientFunc adapts an ordinary function to the Gradient interface.
type GradientFunc func(expect, y, w, ldot []float64)

// Residual calls f(expect, y, w, ldot).
func (f GradientFunc) Residual(expect, y, w, ldot []float64) { f(expect, y, w, ldot) }

// Family bundles a link with the loss and working residual that belong to it.
// The zero Family means Gaussian().
type Family struct {
	Name     string
	Link     Link
	Loss     Loss
	Gradient Gradient
}

const (
	GaussianName = "gaussian"
	BinomialName = "binomial"
)

// Gaussian is the weighted least squares family with the identity link.
func Gaussian() Family {
	return Family{
		Name:     GaussianName,
		Link:     IdentityLink{},
		Loss:     GaussianLoss{},
		Gradient: GaussianGradient{},
	}
}

// Binomial is the logistic regression family (logit link, y in [0, 1]).
func Binomial() Family {
	return Family{
		Name:     BinomialName,
		Link:     LogitLink{},
		Loss:     BinomialLoss{},
		Gradient: CanonicalGradient{},
	}
}

func (f Family) isZero() bool {
	return f.Link == nil && f.Loss == nil && f.Gradient == nil
}

// IdentityLink copies eta into expect.
type IdentityLink struct{}

// Transform implements Link.
func (IdentityLink) Transform(eta, expect []float64) {
	copy(expect, eta)
}

// GaussianLoss is 0.5 * sum(w*(expect-y)^2) / sum(w).
type GaussianLoss struct{}

// Evaluate implements Loss.
func (GaussianLoss) Evaluate(expect, y, w []float64) float64 {
	var ss float64
	for k := range expect {
		d := expect[k] - y[k]
		ss += w[k] * d * d
	}
	return 0.5 * ss / floats.Sum(w)
}

// GaussianGradient is w*(expect-y)/sum(w).
type GaussianGradient struct{}

// Residual implements Gradient.
func (GaussianGradient) Residual(expect, y, w, ldot []float64) {
	canonicalResidual(expect, y, w, ldot)
}

// CanonicalGradient is the working residual of any family used with its
// canonical link, where dLoss/deta reduces to w*(expect-y)/sum(w).
type CanonicalGradient struct{}

// Residual implements Gradient.
func (CanonicalGradient) Residual(expect, y, w, ldot []float64) {
	canonicalResidual(expect, y, w, ldot)
}

func canonicalResidual(expect, y, w, ldot []float64) {
	sumw := floats.Sum(w)
	for k := range expect {
		ldot[k] = w[k] * (expect[k] - y[k]) / sumw
	}
}

// LogitLink is the inverse logit, 1/(1+exp(-eta)).
type LogitLink struct{}

// Transform implements Link.
func (LogitLink) Transform(eta, expect []float64) {
	for k, e := range eta {
		if e >= 0 {
			expect[k] = 1 / (1 + math.Exp(-e))
		} else {
			z := math.Exp(e)
			expect[k] = z / (1 + z)
		}
	}
}

// probEps keeps log-likelihood terms finite when a fitted probability saturates.
const probEps = 1e-15

// BinomialLoss is -sum(w*(y*log(p) + (1-y)*log(1-p))) / sum(w).
type BinomialLoss struct{}

// Evaluate implements Loss.
func (BinomialLoss) Evaluate(expect, y, w []float64) float64 {
	var ll float64
	for k, p := range expect {
		p = math.Min(math.Max(p, probEps), 1-probEps)
		ll += w[k] * (y[k]*math.Log(p) + (1-y[k])*math.Log(1-p))
	}
	return -ll / floats.Sum(w)
}

// CheckResponse implements ResponseChecker: every y must lie in [0, 1].
func (BinomialLoss) CheckResponse(y []float64) error {
	for k, v := range y {
		if v < 0 || v > 1 {
			return fmt.Errorf("response %d is %v, outside [0, 1]", k, v)
		}
	}
	return nil
}

package grouplasso

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// lossSlack, times the number of samples, is the relative tolerance of the
// majorization test.
const lossSlack = 4 * 0x1p-52

// solver owns the working state of one path fit. The current coefficient
// row, the linear predictor and the per-group flags are lent to each group
// update in turn; eta = X*beta holds between group updates.
type solver struct {
	cols   [][]float64 // Columns of the (possibly standardized) design
	y, w   []float64
	ada    []float64
	groups []Group
	fam    Family
	cfg    *Config
	log    zerolog.Logger
	obs    Observer

	beta []float64 // Coefficients of the current path step
	eta  []float64

	isActive    []bool
	betaIsZero  []bool
	useGroup    []bool
	groupChange bool

	// Scratch
	etaNull, etaNew, expect, ldot []float64
	grad, z, u, g, theta, next    []float64

	step   int
	lambda float64
	stats  *StepStats
}

func newSolver(x *mat.Dense, y, w, ada []float64, groups []Group, fam Family, cfg *Config) *solver {
	nrow, ncol := x.Dims()
	cols := make([][]float64, ncol)
	for j := range cols {
		cols[j] = mat.Col(nil, j, x)
	}

	maxLen := 0
	for _, g := range groups {
		maxLen = max(maxLen, g.Len)
	}

	return &solver{
		cols:       cols,
		y:          y,
		w:          w,
		ada:        ada,
		groups:     groups,
		fam:        fam,
		cfg:        cfg,
		log:        cfg.logger(),
		obs:        cfg.observer(),
		beta:       make([]float64, ncol),
		eta:        make([]float64, nrow),
		isActive:   make([]bool, len(groups)),
		betaIsZero: make([]bool, len(groups)),
		useGroup:   make([]bool, len(groups)),
		etaNull:    make([]float64, nrow),
		etaNew:     make([]float64, nrow),
		expect:     make([]float64, nrow),
		ldot:       make([]float64, nrow),
		grad:       make([]float64, maxLen),
		z:          make([]float64, maxLen),
		u:          make([]float64, maxLen),
		g:          make([]float64, maxLen),
		theta:      make([]float64, maxLen),
		next:       make([]float64, maxLen),
	}
}

// GroupSoftThreshold writes the proximal point of threshold*||.||_2 at z into
// out: max(0, 1 - threshold/||z||) * z, and zero when ||z|| is zero.
// out may alias z.
func GroupSoftThreshold(z []float64, threshold float64, out []float64) {
	norm := floats.Norm(z, 2)
	scale := 0.0
	if norm != 0 {
		scale = math.Max(0, 1-threshold/norm)
	}
	for j, v := range z {
		out[j] = scale * v
	}
}

// MomentumWeight is the extrapolation weight m/(m+3) with m = count mod reset.
// With integer set, the ratio is truncated as in integer arithmetic.
func MomentumWeight(count, reset int, integer bool) float64 {
	m := count % reset
	if integer {
		return float64(m / (m + 3))
	}
	return float64(m) / float64(m+3)
}

// applyGroupDelta moves eta from X_g*old to X_g*new. A nil newCoef means zero.
func applyGroupDelta(eta []float64, cols [][]float64, oldCoef, newCoef []float64) {
	for j, col := range cols {
		nv := 0.0
		if newCoef != nil {
			nv = newCoef[j]
		}
		if d := nv - oldCoef[j]; d != 0 {
			floats.AddScaled(eta, d, col)
		}
	}
}

// recomputeEta sets eta = X*beta from scratch.
func (s *solver) recomputeEta() {
	for k := range s.eta {
		s.eta[k] = 0
	}
	for j, b := range s.beta {
		if b != 0 {
			floats.AddScaled(s.eta, b, s.cols[j])
		}
	}
}

// gradient evaluates the family at eta and contracts the working residual
// with the group's columns.
func (s *solver) gradient(eta []float64, cols [][]float64, grad []float64) error {
	s.fam.Link.Transform(eta, s.expect)
	s.fam.Gradient.Residual(s.expect, s.y, s.w, s.ldot)
	var sq float64
	for j, col := range cols {
		grad[j] = floats.Dot(col, s.ldot)
		sq += grad[j] * grad[j]
	}
	if math.IsNaN(sq) || math.IsInf(sq, 0) {
		return &PluginError{Plugin: "gradient", Family: s.fam.Name, Value: sq}
	}
	return nil
}

func (s *solver) loss(eta []float64) (float64, error) {
	s.fam.Link.Transform(eta, s.expect)
	v := s.fam.Loss.Evaluate(s.expect, s.y, s.w)
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &PluginError{Plugin: "loss", Family: s.fam.Name, Value: v}
	}
	return v, nil
}

func (s *solver) penalty(i int, coef []float64) float64 {
	return s.ada[i] * s.lambda * math.Sqrt(float64(s.groups[i].Len)) * floats.Norm(coef, 2)
}

// pass visits every group with useGroup set, in order.
func (s *solver) pass(useGroup []bool) error {
	for i := range s.groups {
		if !useGroup[i] {
			continue
		}
		if err := s.updateGroup(i); err != nil {
			return err
		}
	}
	return nil
}

// updateGroup screens group i with the KKT norm test and, if it survives,
// runs accelerated proximal-gradient iterations on it.
func (s *solver) updateGroup(i int) error {
	grp := s.groups[i]
	cols := s.cols[grp.Start:grp.End()]
	coef := s.beta[grp.Start:grp.End()]
	grad := s.grad[:grp.Len]

	copy(s.etaNull, s.eta)
	for j, col := range cols {
		if coef[j] != 0 {
			floats.AddScaled(s.etaNull, -coef[j], col)
		}
	}
	if err := s.gradient(s.etaNull, cols, grad); err != nil {
		return err
	}

	thr := s.ada[i] * s.lambda
	if floats.Dot(grad, grad) <= thr*thr*float64(grp.Len) {
		if !s.betaIsZero[i] {
			applyGroupDelta(s.eta, cols, coef, nil)
		}
		s.betaIsZero[i] = true
		for j := range coef {
			coef[j] = 0
		}
		return nil
	}

	if !s.isActive[i] {
		s.groupChange = true
	}
	s.isActive[i] = true
	s.betaIsZero[i] = false

	return s.descend(i, grp, cols, coef, thr*math.Sqrt(float64(grp.Len)))
}

// descend runs the inner loop for an active group: backtracking proximal
// gradient steps followed by momentum extrapolation, restarted every Reset
// iterations.
func (s *solver) descend(i int, grp Group, cols [][]float64, coef []float64, shrink float64) error {
	cfg := s.cfg
	grad := s.grad[:grp.Len]
	z, u, g := s.z[:grp.Len], s.u[:grp.Len], s.g[:grp.Len]
	theta, next := s.theta[:grp.Len], s.next[:grp.Len]
	copy(theta, coef)

	t := cfg.Momentum
	check := math.Inf(1)
	count := 0
	exhausted := false
	slack := lossSlack * float64(len(s.eta))
	for count < cfg.InnerIter && check > cfg.Thresh {
		count++

		if err := s.gradient(s.eta, cols, grad); err != nil {
			return err
		}
		lold, err := s.loss(s.eta)
		if err != nil {
			return err
		}

		accepted := false
		trials := 0
		var lnew float64
		for trials < cfg.MaxBacktrack {
			trials++
			for j := range z {
				z[j] = coef[j] - t*grad[j]
			}
			GroupSoftThreshold(z, shrink*t, u)
			for j := range g {
				g[j] = (coef[j] - u[j]) / t
			}

			copy(s.etaNew, s.eta)
			for j, col := range cols {
				if g[j] != 0 {
					floats.AddScaled(s.etaNew, -t*g[j], col)
				}
			}
			if lnew, err = s.loss(s.etaNew); err != nil {
				return err
			}

			// Near the optimum lold-lnew is summation noise; allow for it
			// so the step size does not collapse.
			diff := lold - lnew - t*floats.Dot(grad, g) + t/2*floats.Dot(g, g)
			if diff >= -slack*math.Abs(lold) {
				accepted = true
				break
			}
			t *= cfg.Gamma
		}
		if !accepted {
			s.stats.LineSearchFailures++
			s.log.Warn().Int("step", s.step).Int("group", i).Int("trials", trials).
				Float64("t", t).Msg("line search exhausted, group left in place")
			exhausted = true
			break
		}
		s.obs.LineSearch(LineSearchEvent{
			Step:          s.step,
			Group:         i,
			Trials:        trials,
			T:             t,
			LossBefore:    lold,
			LossAfter:     lnew,
			PenaltyBefore: s.penalty(i, coef),
			PenaltyAfter:  s.penalty(i, u),
		})

		wgt := MomentumWeight(count, cfg.Reset, cfg.IntegerMomentum)
		check = 0
		for j := range u {
			check += math.Abs(theta[j] - u[j])
			next[j] = u[j] + wgt*(u[j]-theta[j])
		}
		applyGroupDelta(s.eta, cols, coef, next)
		copy(coef, next)
		copy(theta, u)
	}

	converged := check <= cfg.Thresh
	if !converged && !exhausted {
		s.stats.InnerCapHits++
	}
	s.stats.InnerIterations += count
	s.obs.InnerDone(s.step, i, count, converged)
	return nil
}

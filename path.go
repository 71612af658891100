package grouplasso

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// StepStats summarizes the work done at one penalty value.
type StepStats struct {
	Step   int
	Lambda float64

	FullScans          int // Passes over every group
	RefinePasses       int // Passes restricted to the active set
	InnerIterations    int
	InnerCapHits       int // Group visits that ran InnerIter iterations without meeting Thresh
	LineSearchFailures int // Line searches that ran out of MaxBacktrack trials

	ActiveGroups  int // Groups that entered the active set during the step
	NonZeroGroups int // Groups with a non-zero solution

	Converged bool    // Last refinement loop met OuterThresh
	Loss      float64 // Loss at the solution
	Objective float64 // Loss plus penalty at the solution
	Duration  time.Duration
}

// Solve fits the group-lasso path described by p. Row k of the returned
// Path.Beta is the solution at p.Lambda[k], warm-started from row k-1.
// A nil cfg means NewDefaultConfig().
//
// Invalid input is reported before any work is done. Steps that stop on an
// iteration cap are not an error here; see Path.Err.
func Solve(p *Problem, cfg *Config) (*Path, error) {
	startTime := time.Now()
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	nrow, ncol := p.X.Dims()
	w := p.W
	if w == nil {
		w = ones(nrow)
	}
	ada := p.AdaWeights
	if ada == nil {
		ada = ones(len(p.Groups))
	}
	fam := p.Family
	if fam.isZero() {
		fam = Gaussian()
	}

	// Working copies
	xData := mat.DenseCopyOf(p.X)
	yData := make([]float64, nrow)
	copy(yData, p.Y)

	var sc *scaling
	if cfg.Standardize {
		sc = standardize(xData, yData, w, fam.Name == GaussianName)
	}

	s := newSolver(xData, yData, w, ada, p.Groups, fam, cfg)
	if p.InitialBeta != nil {
		copy(s.beta, p.InitialBeta)
		sc.toStandard(s.beta)
	}

	s.log.Info().Int("samples", nrow).Int("features", ncol).Int("groups", len(p.Groups)).
		Int("nlam", len(p.Lambda)).Str("family", fam.Name).Msg("starting group lasso path")

	nlam := len(p.Lambda)
	path := &Path{
		Lambda:    append([]float64(nil), p.Lambda...),
		Beta:      mat.NewDense(nlam, ncol, nil),
		Intercept: make([]float64, nlam),
		Steps:     make([]StepStats, nlam),
		Groups:    append([]Group(nil), p.Groups...),
		Family:    fam,
	}

	row := make([]float64, ncol)
	for step, lambda := range p.Lambda {
		stats, err := s.solveStep(step, lambda)
		if err != nil {
			return nil, err
		}
		path.Steps[step] = stats

		copy(row, s.beta)
		path.Intercept[step] = sc.toOriginal(row)
		path.Beta.SetRow(step, row)

		if step%cfg.LogStep == 0 || step == nlam-1 {
			s.log.Info().Int("step", step).Float64("lambda", lambda).
				Int("nonzero", stats.NonZeroGroups).Int("active", stats.ActiveGroups).
				Float64("objective", stats.Objective).Int("full_scans", stats.FullScans).
				Int("refine_passes", stats.RefinePasses).Dur("took", stats.Duration).
				Msg("path step done")
		}
	}

	if err := path.Err(); err != nil {
		s.log.Warn().Err(err).Msg("group lasso path finished without full convergence")
	}
	s.log.Info().Dur("took", time.Since(startTime)).Msg("group lasso path done")
	return path, nil
}

// solveStep optimizes s.beta, already warm-started, at one penalty value.
func (s *solver) solveStep(step int, lambda float64) (StepStats, error) {
	stepStart := time.Now()
	stats := StepStats{Step: step, Lambda: lambda}
	s.step, s.lambda, s.stats = step, lambda, &stats

	for i, grp := range s.groups {
		s.isActive[i] = false
		s.useGroup[i] = true
		s.betaIsZero[i] = allZero(s.beta[grp.Start:grp.End()])
	}
	s.recomputeEta()

	ncol := len(s.beta)
	oldBeta := make([]float64, ncol)
	tempIsActive := make([]bool, len(s.groups))

	s.groupChange = true
	for s.groupChange {
		s.groupChange = false

		stats.FullScans++
		if err := s.pass(s.useGroup); err != nil {
			return stats, err
		}

		counter := 0
		check := math.Inf(1)
		for counter < s.cfg.OuterIter && check > s.cfg.OuterThresh {
			counter++
			copy(oldBeta, s.beta)
			copy(tempIsActive, s.isActive)

			stats.RefinePasses++
			if err := s.pass(tempIsActive); err != nil {
				return stats, err
			}

			check = 0
			for j, b := range s.beta {
				check += math.Abs(oldBeta[j] - b)
			}
		}
		stats.Converged = check <= s.cfg.OuterThresh

		s.log.Debug().Int("step", step).Int("full_scans", stats.FullScans).
			Int("refine_passes", counter).Float64("change", check).
			Bool("group_change", s.groupChange).Msg("active set pass")
	}

	loss, err := s.loss(s.eta)
	if err != nil {
		return stats, err
	}
	stats.Loss = loss
	stats.Objective = loss
	for i, grp := range s.groups {
		if s.isActive[i] {
			stats.ActiveGroups++
		}
		coef := s.beta[grp.Start:grp.End()]
		if !allZero(coef) {
			stats.NonZeroGroups++
			stats.Objective += s.penalty(i, coef)
		}
	}
	stats.Duration = time.Since(stepStart)

	s.obs.StepDone(stats)
	s.stats = nil
	return stats, nil
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

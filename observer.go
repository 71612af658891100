package grouplasso

// LineSearchEvent describes one accepted backtracking line search.
type LineSearchEvent struct {
	Step   int     // Path index
	Group  int     // Index into the problem's groups
	Trials int     // Candidate step sizes evaluated, including the accepted one
	T      float64 // Accepted step size

	// Loss and group penalty at the point the step started from and at the
	// proximal point it produced.
	LossBefore, LossAfter       float64
	PenaltyBefore, PenaltyAfter float64
}

// Observer receives solver progress. Calls are made synchronously from the
// solving goroutine.
type Observer interface {
	LineSearch(ev LineSearchEvent)
	InnerDone(step, group, iterations int, converged bool)
	StepDone(stats StepStats)
}

type nopObserver struct{}

func (nopObserver) LineSearch(LineSearchEvent) {}
func (nopObserver) InnerDone(int, int, int, bool) {}
func (nopObserver) StepDone(StepStats) {}

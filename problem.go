package grouplasso

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Group is a contiguous block of columns penalized together.
type Group struct {
	Start int // First column of the block
	Len   int // Number of columns
}

// End returns one past the last column of the group.
func (g Group) End() int { return g.Start + g.Len }

// ContiguousGroups lays groups of the given sizes side by side from column 0.
func ContiguousGroups(sizes ...int) []Group {
	groups := make([]Group, len(sizes))
	start := 0
	for i, n := range sizes {
		groups[i] = Group{Start: start, Len: n}
		start += n
	}
	return groups
}

// Problem holds the data of one group-lasso path fit.
type Problem struct {
	X          *mat.Dense // nrow x ncol design
	Y          []float64  // Response, length nrow
	W          []float64  // Observation weights; nil means all ones
	AdaWeights []float64  // One penalty scale per group; nil means all ones
	Groups     []Group    // Disjoint column blocks; need not cover every column
	Lambda     []float64  // Penalty path, one solution per value
	Family     Family     // Zero value means Gaussian()

	// InitialBeta seeds the first path step; nil starts from zero.
	// Columns outside every group keep these values for the whole path.
	InitialBeta []float64
}

// Validate checks dimensions and value ranges.
func (p *Problem) Validate() error {
	if p.X == nil || p.X.IsEmpty() {
		return invalid("X", "design matrix is empty")
	}
	nrow, ncol := p.X.Dims()

	if len(p.Y) != nrow {
		return invalid("Y", "length %d does not match %d rows", len(p.Y), nrow)
	}
	for k, v := range p.Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("Y", "response %d is %v", k, v)
		}
	}
	if err := checkWeights(p.W, nrow); err != nil {
		return err
	}

	if len(p.Groups) == 0 {
		return invalid("Groups", "no groups")
	}
	if err := checkGroups(p.Groups, ncol); err != nil {
		return err
	}

	if p.AdaWeights != nil && len(p.AdaWeights) != len(p.Groups) {
		return invalid("AdaWeights", "length %d does not match %d groups", len(p.AdaWeights), len(p.Groups))
	}
	for i, a := range p.AdaWeights {
		if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return invalid("AdaWeights", "weight %d is %v", i, a)
		}
	}

	if len(p.Lambda) == 0 {
		return invalid("Lambda", "empty penalty path")
	}
	for i, l := range p.Lambda {
		if l < 0 || math.IsNaN(l) || math.IsInf(l, 0) {
			return invalid("Lambda", "value %d is %v", i, l)
		}
	}

	if p.InitialBeta != nil && len(p.InitialBeta) != ncol {
		return invalid("InitialBeta", "length %d does not match %d columns", len(p.InitialBeta), ncol)
	}

	if !p.Family.isZero() {
		if p.Family.Link == nil || p.Family.Loss == nil || p.Family.Gradient == nil {
			return invalid("Family", "%q needs a link, a loss and a gradient", p.Family.Name)
		}
		if rc, ok := p.Family.Loss.(ResponseChecker); ok {
			if err := rc.CheckResponse(p.Y); err != nil {
				return invalid("Y", "%s family: %v", p.Family.Name, err)
			}
		}
	}
	return nil
}

func checkWeights(w []float64, nrow int) error {
	if w == nil {
		return nil
	}
	if len(w) != nrow {
		return invalid("W", "length %d does not match %d rows", len(w), nrow)
	}
	var sum float64
	for k, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("W", "weight %d is %v", k, v)
		}
		sum += v
	}
	if sum <= 0 {
		return invalid("W", "weights sum to %v", sum)
	}
	return nil
}

func checkGroups(groups []Group, ncol int) error {
	order := make([]int, len(groups))
	for i, g := range groups {
		if g.Len < 1 {
			return invalid("Groups", "group %d has length %d", i, g.Len)
		}
		if g.Start < 0 || g.End() > ncol {
			return invalid("Groups", "group %d spans columns [%d,%d) outside [0,%d)", i, g.Start, g.End(), ncol)
		}
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return groups[order[a]].Start < groups[order[b]].Start })
	for k := 1; k < len(order); k++ {
		prev, cur := groups[order[k-1]], groups[order[k]]
		if cur.Start < prev.End() {
			return invalid("Groups", "groups %d and %d overlap", order[k-1], order[k])
		}
	}
	return nil
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// Package metrics exports group-lasso solver progress as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/causalgo/grouplasso"
)

// Collector implements grouplasso.Observer on top of Prometheus metrics.
type Collector struct {
	LineSearchTrials prometheus.Histogram
	Backtracks       prometheus.Counter
	InnerIterations  prometheus.Histogram
	InnerVisits      *prometheus.CounterVec // label: converged
	PathSteps        *prometheus.CounterVec // label: converged
	StepDuration     prometheus.Histogram
	ActiveGroups     prometheus.Gauge
	NonZeroGroups    prometheus.Gauge
	Objective        prometheus.Gauge
}

// NewCollector creates the solver metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		LineSearchTrials: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grouplasso_line_search_trials",
			Help:    "Candidate step sizes evaluated per accepted line search",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		Backtracks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grouplasso_backtracks_total",
			Help: "Rejected line-search trials",
		}),
		InnerIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grouplasso_inner_iterations",
			Help:    "Proximal-gradient iterations per active group visit",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
		InnerVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grouplasso_inner_visits_total",
			Help: "Active group visits by convergence outcome",
		}, []string{"converged"}),
		PathSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grouplasso_path_steps_total",
			Help: "Completed path steps by convergence outcome",
		}, []string{"converged"}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grouplasso_step_duration_seconds",
			Help:    "Wall time per path step",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		ActiveGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grouplasso_active_groups",
			Help: "Groups in the active set at the last completed step",
		}),
		NonZeroGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grouplasso_nonzero_groups",
			Help: "Non-zero groups at the last completed step",
		}),
		Objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grouplasso_objective",
			Help: "Penalized objective at the last completed step",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.LineSearchTrials, c.Backtracks, c.InnerIterations, c.InnerVisits,
		c.PathSteps, c.StepDuration, c.ActiveGroups, c.NonZeroGroups, c.Objective,
	} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register solver metric: %w", err)
		}
	}
	return c, nil
}

// LineSearch implements grouplasso.Observer.
func (c *Collector) LineSearch(ev grouplasso.LineSearchEvent) {
	c.LineSearchTrials.Observe(float64(ev.Trials))
	c.Backtracks.Add(float64(ev.Trials - 1))
}

// InnerDone implements grouplasso.Observer.
func (c *Collector) InnerDone(step, group, iterations int, converged bool) {
	c.InnerIterations.Observe(float64(iterations))
	c.InnerVisits.WithLabelValues(boolLabel(converged)).Inc()
}

// StepDone implements grouplasso.Observer.
func (c *Collector) StepDone(stats grouplasso.StepStats) {
	c.PathSteps.WithLabelValues(boolLabel(stats.Converged)).Inc()
	c.StepDuration.Observe(stats.Duration.Seconds())
	c.ActiveGroups.Set(float64(stats.ActiveGroups))
	c.NonZeroGroups.Set(float64(stats.NonZeroGroups))
	c.Objective.Set(stats.Objective)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

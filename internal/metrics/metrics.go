// Package metrics exposes Prometheus collectors describing simplex runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/simplex/internal/optimization/neldermead"
)

const namespace = "simplex"

// Metrics groups the collectors recorded by the optimization server.
type Metrics struct {
	Runs        *prometheus.CounterVec
	Iterations  *prometheus.HistogramVec
	Evaluations *prometheus.CounterVec
	Steps       *prometheus.CounterVec
	ActiveJobs  prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished minimizations by objective and outcome.",
		}, []string{"objective", "status"}),
		Iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iterations",
			Help:      "Transformation steps per finished minimization.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"objective"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Points passed to objective functions.",
		}, []string{"objective"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Simplex transformations by kind.",
		}, []string{"kind"}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Minimizations currently running.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Runs, m.Iterations, m.Evaluations, m.Steps, m.ActiveJobs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRun records a finished minimization.
func (m *Metrics) ObserveRun(objective string, res *neldermead.Result) {
	m.Runs.WithLabelValues(objective, res.Status.String()).Inc()
	m.Iterations.WithLabelValues(objective).Observe(float64(res.Iterations))
	m.Evaluations.WithLabelValues(objective).Add(float64(res.Evaluations))

	m.Steps.WithLabelValues(neldermead.StepReflect.String()).Add(float64(res.Steps.Reflections))
	m.Steps.WithLabelValues(neldermead.StepExpand.String()).Add(float64(res.Steps.Expansions))
	m.Steps.WithLabelValues(neldermead.StepContract.String()).Add(float64(res.Steps.Contractions))
	m.Steps.WithLabelValues(neldermead.StepShrink.String()).Add(float64(res.Steps.Shrinks))
}

// ObserveFailure records a minimization that ended with an error or was
// cancelled.
func (m *Metrics) ObserveFailure(objective, status string) {
	m.Runs.WithLabelValues(objective, status).Inc()
}

package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/rcpsched/core/events"
	coremetrics "github.com/kilianp07/rcpsched/core/metrics"
)

// PromSink exposes search progress as Prometheus metrics.
type PromSink struct {
	objective  *prometheus.GaugeVec
	best       *prometheus.GaugeVec
	evaluation *prometheus.GaugeVec
	iteration  *prometheus.GaugeVec
	neighbors  prometheus.Histogram
	rounds     *prometheus.CounterVec
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewPromSink registers the search metrics on the default Prometheus registerer.
func NewPromSink(namespace string) (*PromSink, error) {
	return NewPromSinkWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// register adds c to reg, reusing the collector already registered under
// the same description.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(namespace string, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	run := []string{"run_id"}
	s := &PromSink{
		objective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "search_objective",
			Help: "Objective of the current solution",
		}, run),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "search_best_objective",
			Help: "Objective of the incumbent",
		}, run),
		evaluation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "search_evaluation",
			Help: "Weighted evaluation of the current solution",
		}, run),
		iteration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "search_iteration",
			Help: "Last reported iteration",
		}, run),
		neighbors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_neighbors",
			Help:    "Neighbours evaluated per iteration",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_rounds_total",
			Help: "Search rounds by end reason",
		}, []string{"reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_runs_total",
			Help: "Finished runs",
		}, []string{"feasible"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_duration_seconds",
			Help:    "Wall time of finished runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
	var err error
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.best, err = register(reg, s.best); err != nil {
		return nil, err
	}
	if s.evaluation, err = register(reg, s.evaluation); err != nil {
		return nil, err
	}
	if s.iteration, err = register(reg, s.iteration); err != nil {
		return nil, err
	}
	if s.neighbors, err = register(reg, s.neighbors); err != nil {
		return nil, err
	}
	if s.rounds, err = register(reg, s.rounds); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	return s, nil
}

var _ coremetrics.MetricsSink = (*PromSink)(nil)

// RecordProgress updates the gauges of the run.
func (s *PromSink) RecordProgress(ev events.Progress) error {
	s.objective.WithLabelValues(ev.RunID).Set(float64(ev.Objective))
	s.best.WithLabelValues(ev.RunID).Set(float64(ev.Best))
	s.evaluation.WithLabelValues(ev.RunID).Set(ev.Evaluation)
	s.iteration.WithLabelValues(ev.RunID).Set(float64(ev.Iteration))
	if ev.Neighbors > 0 {
		s.neighbors.Observe(float64(ev.Neighbors))
	}
	return nil
}

// RecordRound counts the round under its end reason.
func (s *PromSink) RecordRound(ev events.Round) error {
	s.rounds.WithLabelValues(ev.Reason).Inc()
	return nil
}

// RecordResult counts the run and observes its duration.
func (s *PromSink) RecordResult(ev events.Done) error {
	s.runs.WithLabelValues(strconv.FormatBool(ev.Feasible)).Inc()
	s.duration.Observe(ev.Elapsed.Seconds())
	s.best.WithLabelValues(ev.RunID).Set(float64(ev.Objective))
	return nil
}

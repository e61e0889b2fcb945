package observability

import (
	"context"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	nodeErrors   *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		nodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autonoma_node_runs_total",
			Help: "Total number of node executions",
		}, []string{"node"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autonoma_node_duration_seconds",
			Help:    "Duration of node executions",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autonoma_node_errors_total",
			Help: "Total number of failed node executions",
		}, []string{"node"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autonoma_transitions_total",
			Help: "Transition guard decisions",
		}, []string{"source", "target", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autonoma_runs_total",
			Help: "Completed runs by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autonoma_run_duration_seconds",
			Help:    "Duration of whole runs",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.nodeRuns, m.nodeDuration, m.nodeErrors, m.transitions, m.runs, m.runDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			node := string(e.NodeID)
			m.nodeRuns.WithLabelValues(node).Inc()
			m.nodeDuration.WithLabelValues(node).Observe(e.Duration.Seconds())
			if e.Err != "" {
				m.nodeErrors.WithLabelValues(node).Inc()
			}
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			status := domain.AuditBlocked
			if e.Allowed {
				status = domain.AuditAllowed
			}
			m.transitions.WithLabelValues(string(e.Source), string(e.Target), string(status)).Inc()
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			m.runs.WithLabelValues(string(e.Outcome)).Inc()
			m.runDuration.Observe(e.Duration.Seconds())
		},
	}
}

package orchestrator

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors fed by orchestrator callbacks.
type Metrics struct {
	NodeVisits     *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
	RouteDecisions *prometheus.CounterVec
	Runs           *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaexpert_node_visits_total",
				Help: "Total number of node invocations",
			},
			[]string{"node"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metaexpert_node_duration_seconds",
				Help:    "Duration of node invocations",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"node"},
		),
		RouteDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaexpert_route_decisions_total",
				Help: "Routing decisions by chosen path",
			},
			[]string{"path", "ambiguous"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaexpert_runs_total",
				Help: "Completed runs by outcome",
			},
			[]string{"outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.NodeVisits, m.NodeDuration, m.RouteDecisions, m.Runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Callbacks returns the callbacks updating the collectors.
func (m *Metrics) Callbacks() []Callback {
	return []Callback{
		NewFunctionCallback(CallbackBeforeNode, func(_ context.Context, cc *CallbackContext) error {
			m.NodeVisits.WithLabelValues(cc.Node).Inc()
			return nil
		}),
		NewFunctionCallback(CallbackAfterNode, m.observe),
		NewFunctionCallback(CallbackOnError, m.observe),
		NewFunctionCallback(CallbackOnRoute, func(_ context.Context, cc *CallbackContext) error {
			m.RouteDecisions.WithLabelValues(cc.Next, strconv.FormatBool(cc.Fallback != nil)).Inc()
			return nil
		}),
		NewFunctionCallback(CallbackOnFinish, func(_ context.Context, cc *CallbackContext) error {
			m.Runs.WithLabelValues(Outcome(cc.Err)).Inc()
			return nil
		}),
	}
}

func (m *Metrics) observe(_ context.Context, cc *CallbackContext) error {
	m.NodeDuration.WithLabelValues(cc.Node).Observe(cc.Duration.Seconds())
	return nil
}

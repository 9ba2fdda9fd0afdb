// Package metrics is the inbound pull-metrics adapter: a Prometheus
// /metrics endpoint plus an optional live-update /live/ws stream, both
// fed by a periodically recomputed aggregate over the captured flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments this adapter exposes.
type Metrics struct {
	FlowsTotal        prometheus.Gauge
	SuccessRate       prometheus.Gauge
	GradeDistribution *prometheus.GaugeVec
	CognitiveLoad     *prometheus.GaugeVec
	ToolCallsTotal    *prometheus.GaugeVec

	// CapturesDropped counts Raw Message Records that never reached the
	// message store, whether evicted by the capture queue's soft cap or
	// lost to a write failure.
	CapturesDropped prometheus.Counter
}

// NewMetrics creates and registers the mcpaudit metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		FlowsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "mcpaudit",
			Name:      "flows_total",
			Help:      "Flows reconstructed in the current sliding window",
		}),
		SuccessRate: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "mcpaudit",
			Name:      "success_rate",
			Help:      "Fraction of flows in the current sliding window with no tool-call error",
		}),
		GradeDistribution: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mcpaudit",
				Name:      "grade_distribution",
				Help:      "Flow count by cognitive-load letter grade",
			},
			[]string{"grade"},
		),
		CognitiveLoad: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mcpaudit",
				Name:      "cognitive_load",
				Help:      "Mean cognitive load sub-score, by factor",
			},
			[]string{"factor"},
		),
		ToolCallsTotal: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mcpaudit",
				Name:      "tool_calls_total",
				Help:      "Tool call count in the current sliding window, by tool",
			},
			[]string{"tool"},
		),
		CapturesDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mcpaudit",
			Name:      "captures_dropped_total",
			Help:      "Raw message records dropped by the capture queue or message store",
		}),
	}
}

// Apply pushes a snapshot's values into the Prometheus instruments.
func (m *Metrics) Apply(snapshot Snapshot) {
	m.FlowsTotal.Set(float64(snapshot.FlowsTotal))
	m.SuccessRate.Set(snapshot.SuccessRate)

	m.GradeDistribution.Reset()
	for grade, count := range snapshot.GradeDistribution {
		m.GradeDistribution.WithLabelValues(grade).Set(float64(count))
	}

	m.CognitiveLoad.Reset()
	for factor, value := range snapshot.CognitiveLoad {
		m.CognitiveLoad.WithLabelValues(factor).Set(value)
	}

	m.ToolCallsTotal.Reset()
	for tool, count := range snapshot.ToolCallsTotal {
		m.ToolCallsTotal.WithLabelValues(tool).Set(float64(count))
	}
}

package outbound

import "context"

// MetricsSnapshot is the periodic aggregate exported by the live metrics
// pull/push adapters: flow counts, the grade distribution, mean cognitive
// load per factor, and tool-call counts, recomputed at most once per the
// configured export interval.
type MetricsSnapshot struct {
	GeneratedAtUnix int64 `json:"generated_at_unix"`

	FlowsTotal int `json:"flows_total"`

	// SuccessRate is the fraction of flows with no tool-call error, in [0,1].
	SuccessRate float64 `json:"success_rate"`

	// GradeDistribution counts flows per letter grade ("A".."F").
	GradeDistribution map[string]int `json:"grade_distribution"`

	// CognitiveLoad holds the mean score per sub-score factor
	// ("prompt_complexity", "context_switching", "retry_frustration",
	// "configuration_friction", "integration_cognition", "composite").
	CognitiveLoad map[string]float64 `json:"cognitive_load"`

	// ToolCallsTotal counts tools/call requests observed per tool name.
	ToolCallsTotal map[string]int `json:"tool_calls_total"`
}

// MetricsSink is the outbound port for pushing a MetricsSnapshot to an
// external system (webhook, OTLP collector). Implementations are
// best-effort: a push failure must never propagate back into the proxy
// hot path or the pull-side /metrics handler.
type MetricsSink interface {
	Push(ctx context.Context, snapshot MetricsSnapshot) error
}

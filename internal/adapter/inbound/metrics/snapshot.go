package metrics

import (
	"github.com/cogtrace/mcpaudit/internal/domain/flow"
	"github.com/cogtrace/mcpaudit/internal/domain/scoring"
	"github.com/cogtrace/mcpaudit/internal/port/outbound"
)

// Snapshot is the aggregate this adapter recomputes at most once per
// export interval, shared by the Prometheus instruments, the /live/ws
// broadcast, and any configured push sinks.
type Snapshot struct {
	GeneratedAtUnix   int64
	FlowsTotal        int
	SuccessRate       float64
	GradeDistribution map[string]int
	CognitiveLoad     map[string]float64
	ToolCallsTotal    map[string]int
}

// buildSnapshot reconstructs flows, scores each, and aggregates the
// result into a Snapshot. generatedAtUnix is passed in rather than
// computed here so callers control the clock source.
func buildSnapshot(flows []flow.Flow, scorer *scoring.Scorer, generatedAtUnix int64) Snapshot {
	snapshot := Snapshot{
		GeneratedAtUnix:   generatedAtUnix,
		FlowsTotal:        len(flows),
		GradeDistribution: make(map[string]int),
		CognitiveLoad:     make(map[string]float64),
		ToolCallsTotal:    make(map[string]int),
	}

	if len(flows) == 0 {
		return snapshot
	}

	var prompt, context, retry, config, integration, composite float64
	var successCount int
	for _, f := range flows {
		score := scorer.Score(f)
		snapshot.GradeDistribution[string(score.Grade)]++
		prompt += score.PromptComplexity
		context += score.ContextSwitching
		retry += score.RetryFrustration
		config += score.ConfigurationFriction
		integration += score.IntegrationCognition
		composite += score.Composite

		if f.Success {
			successCount++
		}

		for _, call := range f.MCPCalls {
			if call.ToolName != "" {
				snapshot.ToolCallsTotal[call.ToolName]++
			}
		}
	}
	n := float64(len(flows))
	snapshot.SuccessRate = float64(successCount) / n
	snapshot.CognitiveLoad["prompt_complexity"] = prompt / n
	snapshot.CognitiveLoad["context_switching"] = context / n
	snapshot.CognitiveLoad["retry_frustration"] = retry / n
	snapshot.CognitiveLoad["configuration_friction"] = config / n
	snapshot.CognitiveLoad["integration_cognition"] = integration / n
	snapshot.CognitiveLoad["composite"] = composite / n

	return snapshot
}

// toPort converts a Snapshot to the outbound.MetricsSnapshot DTO push
// sinks consume.
func (s Snapshot) toPort() outbound.MetricsSnapshot {
	return outbound.MetricsSnapshot{
		GeneratedAtUnix:   s.GeneratedAtUnix,
		FlowsTotal:        s.FlowsTotal,
		SuccessRate:       s.SuccessRate,
		GradeDistribution: s.GradeDistribution,
		CognitiveLoad:     s.CognitiveLoad,
		ToolCallsTotal:    s.ToolCallsTotal,
	}
}

package report

import (
	"fmt"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/flow"
	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/internal/domain/scoring"
)

// Builder assembles report shapes from captured records, reusing the flow
// reconstructor and cognitive scorer.
type Builder struct {
	Reconstructor *flow.Reconstructor
	Scorer        *scoring.Scorer
}

// NewBuilder wires a Builder to the given reconstructor and scorer.
func NewBuilder(reconstructor *flow.Reconstructor, scorer *scoring.Scorer) *Builder {
	return &Builder{Reconstructor: reconstructor, Scorer: scorer}
}

// Window describes the query parameters a report run was generated under.
type Window struct {
	Since  time.Time
	Server string
}

func (b *Builder) meta(w Window, sources []string) Meta {
	return Meta{
		ReportVersion:     ReportVersion,
		Algorithm:         AlgorithmName,
		TimeWindowSeconds: b.Reconstructor.WindowSeconds,
		DataSources:       sources,
		GeneratedAt:       time.Now().UTC(),
		Since:             w.Since,
		Server:            w.Server,
	}
}

// BuildTrace produces the `trace` report: MCP-side flows only, no LLM
// correlation, no scoring.
func (b *Builder) BuildTrace(records []message.RawMessageRecord, w Window) TraceReport {
	flows := b.Reconstructor.Reconstruct(records, nil)

	out := make([]TraceFlow, 0, len(flows))
	for _, f := range flows {
		out = append(out, TraceFlow{
			FlowID:   f.FlowID,
			MCPCalls: f.MCPCalls,
			Timeline: mcpOnlyTimeline(f.Timeline),
		})
	}

	return TraceReport{
		Meta:  b.meta(w, []string{"messages"}),
		Flows: out,
	}
}

// BuildDetailed produces the `detailed` report: full flow structure with
// LLM Decision Record correlation.
func (b *Builder) BuildDetailed(records []message.RawMessageRecord, decisions []message.LLMDecisionRecord, w Window) DetailedReport {
	flows := b.Reconstructor.Reconstruct(records, decisions)

	sources := []string{"messages"}
	if len(decisions) > 0 {
		sources = append(sources, "decisions")
	}

	out := make([]DetailedFlow, 0, len(flows))
	for _, f := range flows {
		out = append(out, DetailedFlow{
			FlowID:          f.FlowID,
			StartTime:       f.StartTime,
			EndTime:         f.EndTime,
			DurationMs:      f.DurationMs,
			EventCount:      f.EventCount,
			ServersInvolved: f.ServersInvolved,
			CrossServerFlow: f.CrossServerFlow,
			Success:         f.Success,
			HasUserContext:  f.HasUserContext,
			UserPrompt:      f.UserPrompt,
			LLMReasoning:    f.LLMReasoning,
			MCPCalls:        f.MCPCalls,
			LLMDecisions:    f.LLMDecisions,
			Timeline:        f.Timeline,
		})
	}

	return DetailedReport{
		Meta:  b.meta(w, sources),
		Flows: out,
	}
}

// BuildUsability produces the `usability` report: aggregate cognitive
// load, usability metrics, rule-derived insights, and the grade
// calculation trail.
func (b *Builder) BuildUsability(records []message.RawMessageRecord, decisions []message.LLMDecisionRecord, w Window) UsabilityReport {
	flows := b.Reconstructor.Reconstruct(records, decisions)

	perFlow := make([]scoring.FlowScore, 0, len(flows))
	for _, f := range flows {
		perFlow = append(perFlow, b.Scorer.Score(f))
	}

	load := aggregateCognitiveLoad(perFlow)
	metrics := usabilityMetrics(flows)
	insights := deriveInsights(flows, load, metrics)

	sources := []string{"messages"}
	if len(decisions) > 0 {
		sources = append(sources, "decisions")
	}

	return UsabilityReport{
		Meta:              b.meta(w, sources),
		CognitiveLoad:     load,
		UsabilityMetrics:  metrics,
		UsabilityInsights: insights,
		GradeCalculation:  gradeCalculation(load, b.Scorer.Weights()),
	}
}

func aggregateCognitiveLoad(scores []scoring.FlowScore) AggregateCognitiveLoad {
	if len(scores) == 0 {
		return AggregateCognitiveLoad{Grade: scoring.GradeA, PerFlow: scores}
	}

	var prompt, context, retry, config, integration, composite float64
	for _, s := range scores {
		prompt += s.PromptComplexity
		context += s.ContextSwitching
		retry += s.RetryFrustration
		config += s.ConfigurationFriction
		integration += s.IntegrationCognition
		composite += s.Composite
	}
	n := float64(len(scores))

	agg := AggregateCognitiveLoad{
		PromptComplexity:      prompt / n,
		ContextSwitching:      context / n,
		RetryFrustration:      retry / n,
		ConfigurationFriction: config / n,
		IntegrationCognition:  integration / n,
		Composite:             composite / n,
		PerFlow:               scores,
	}
	agg.Grade = scoring.GradeFor(agg.Composite)
	return agg
}

func usabilityMetrics(flows []flow.Flow) UsabilityMetrics {
	if len(flows) == 0 {
		return UsabilityMetrics{}
	}

	var successCount, crossServerCount int
	var totalDurationMs int64
	for _, f := range flows {
		if f.Success {
			successCount++
		}
		if f.CrossServerFlow {
			crossServerCount++
		}
		totalDurationMs += f.DurationMs
	}

	return UsabilityMetrics{
		TotalFlows:       len(flows),
		SuccessRate:      float64(successCount) / float64(len(flows)),
		CrossServerFlows: crossServerCount,
		AvgDurationMs:    float64(totalDurationMs) / float64(len(flows)),
	}
}

func deriveInsights(flows []flow.Flow, load AggregateCognitiveLoad, metrics UsabilityMetrics) []string {
	var insights []string

	if metrics.TotalFlows == 0 {
		return []string{"no flows in the selected window"}
	}
	if metrics.SuccessRate < 0.8 {
		insights = append(insights, fmt.Sprintf("success rate is %.0f%%, below the 80%% comfort threshold", metrics.SuccessRate*100))
	}
	if load.RetryFrustration > 50 {
		insights = append(insights, "retry frustration is elevated — users are repeating the same call")
	}
	if load.ConfigurationFriction > 50 {
		insights = append(insights, "configuration friction is elevated — check auth/setup error rates")
	}
	if metrics.CrossServerFlows > 0 {
		insights = append(insights, fmt.Sprintf("%d flow(s) span multiple servers", metrics.CrossServerFlows))
	}
	if len(insights) == 0 {
		insights = append(insights, "no notable friction detected in this window")
	}
	return insights
}

func gradeCalculation(load AggregateCognitiveLoad, weights scoring.Weights) GradeCalculation {
	return GradeCalculation{
		Formula: fmt.Sprintf(
			"S = %.2f*prompt_complexity + %.2f*context_switching + %.2f*retry_frustration + %.2f*configuration_friction + %.2f*integration_cognition",
			weights.PromptComplexity, weights.ContextSwitching, weights.RetryFrustration,
			weights.ConfigurationFriction, weights.IntegrationCognition,
		),
		Weights:   weights,
		Composite: load.Composite,
		Grade:     load.Grade,
	}
}

// mcpOnlyTimeline filters a flow timeline down to message events,
// dropping correlated LLM Decision Records, per the `trace` family's
// MCP-only scope.
func mcpOnlyTimeline(timeline []flow.TimelineEvent) []flow.TimelineEvent {
	out := make([]flow.TimelineEvent, 0, len(timeline))
	for _, ev := range timeline {
		if ev.Kind == flow.TimelineMessage {
			out = append(out, ev)
		}
	}
	return out
}

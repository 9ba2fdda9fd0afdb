// Package report builds the trace, detailed, and usability report shapes
// from reconstructed flows. Serialization to json/html/txt lives in
// internal/adapter/outbound/reportsink; this package only assembles data.
package report

import (
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/flow"
	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/internal/domain/scoring"
)

// AlgorithmName identifies the flow reconstruction algorithm in report
// metadata, for forward-compatible report consumers.
const AlgorithmName = "gap-window-linear-scan"

// ReportVersion is the schema version of the report shapes below.
const ReportVersion = "1"

// Meta is the provenance block shared by the trace, detailed, and
// usability report families.
type Meta struct {
	ReportVersion     string    `json:"report_version"`
	Algorithm         string    `json:"algorithm"`
	TimeWindowSeconds int       `json:"time_window_seconds"`
	DataSources       []string  `json:"data_sources"`
	GeneratedAt       time.Time `json:"generated_at"`
	Since             time.Time `json:"since,omitempty"`
	Server            string    `json:"server,omitempty"`
}

// TraceFlow is a flow restricted to its MCP-side span: calls and an
// MCP-only timeline, with no LLM Decision Record correlation.
type TraceFlow struct {
	FlowID   string                `json:"flow_id"`
	MCPCalls []flow.MCPCall        `json:"mcp_calls"`
	Timeline []flow.TimelineEvent  `json:"timeline"`
}

// TraceReport is the `trace` report family: raw flows over the
// host<->server span, no LLM correlation, no scoring.
type TraceReport struct {
	Meta  Meta        `json:"meta"`
	Flows []TraceFlow `json:"flows"`
}

// DetailedFlow adds LLM Decision Record correlation and per-flow
// structural summary to a reconstructed flow.
type DetailedFlow struct {
	FlowID          string                     `json:"flow_id"`
	StartTime       time.Time                  `json:"start_time"`
	EndTime         time.Time                  `json:"end_time"`
	DurationMs      int64                      `json:"duration_ms"`
	EventCount      int                        `json:"event_count"`
	ServersInvolved []string                   `json:"servers_involved"`
	CrossServerFlow bool                       `json:"cross_server_flow"`
	Success         bool                       `json:"success"`
	HasUserContext  bool                       `json:"has_user_context"`
	UserPrompt      string                     `json:"user_prompt"`
	LLMReasoning    string                     `json:"llm_reasoning"`
	MCPCalls        []flow.MCPCall             `json:"mcp_calls"`
	LLMDecisions    []message.LLMDecisionRecord `json:"llm_decisions,omitempty"`
	Timeline        []flow.TimelineEvent       `json:"timeline"`
}

// DetailedReport is the `detailed` report family.
type DetailedReport struct {
	Meta  Meta           `json:"meta"`
	Flows []DetailedFlow `json:"flows"`
}

// AggregateCognitiveLoad summarizes sub-scores across every flow in the
// report window, alongside the per-flow breakdown that produced it.
type AggregateCognitiveLoad struct {
	PromptComplexity      float64            `json:"prompt_complexity"`
	ContextSwitching      float64            `json:"context_switching"`
	RetryFrustration      float64            `json:"retry_frustration"`
	ConfigurationFriction float64            `json:"configuration_friction"`
	IntegrationCognition  float64            `json:"integration_cognition"`
	Composite             float64            `json:"composite"`
	Grade                 scoring.Grade      `json:"grade"`
	PerFlow               []scoring.FlowScore `json:"per_flow"`
}

// UsabilityMetrics are aggregate counters derived from the flow set.
type UsabilityMetrics struct {
	TotalFlows       int     `json:"total_flows"`
	SuccessRate      float64 `json:"success_rate"`
	CrossServerFlows int     `json:"cross_server_flows"`
	AvgDurationMs    float64 `json:"avg_duration_ms"`
}

// GradeCalculation shows the weighted-sum formula with the actual numbers
// substituted, for the report reader to audit the grade by hand.
type GradeCalculation struct {
	Formula   string          `json:"formula"`
	Weights   scoring.Weights `json:"weights"`
	Composite float64         `json:"composite"`
	Grade     scoring.Grade   `json:"grade"`
}

// UsabilityReport is the `usability` report family: aggregate cognitive
// load, usability metrics, rule-derived insights, and the grade
// calculation trail.
type UsabilityReport struct {
	Meta              Meta                   `json:"meta"`
	CognitiveLoad     AggregateCognitiveLoad `json:"cognitive_load"`
	UsabilityMetrics  UsabilityMetrics       `json:"usability_metrics"`
	UsabilityInsights []string               `json:"usability_insights"`
	GradeCalculation  GradeCalculation       `json:"grade_calculation"`
}

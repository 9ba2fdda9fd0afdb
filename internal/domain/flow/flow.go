// Package flow groups Raw Message Records into flows: bursts of MCP
// activity separated by a configurable silence window, the unit the
// cognitive scorer and report generator both operate on.
package flow

import (
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
)

// MCPCall is a tools/call request paired with its matching response, if one
// arrived within the flow.
type MCPCall struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	Request   message.RawMessageRecord  `json:"request"`
	Response  *message.RawMessageRecord `json:"response,omitempty"`
	Success   bool                      `json:"success"`
}

// TimelineEventKind distinguishes a Raw Message Record from an LLM
// Decision Record in a merged timeline.
type TimelineEventKind string

const (
	TimelineMessage      TimelineEventKind = "message"
	TimelineLLMDecision  TimelineEventKind = "llm_decision"
)

// TimelineEvent is one entry in a flow's ordered timeline, wrapping either
// a Raw Message Record or an LLM Decision Record.
type TimelineEvent struct {
	Timestamp time.Time                  `json:"timestamp"`
	Kind      TimelineEventKind          `json:"kind"`
	Message   *message.RawMessageRecord  `json:"message,omitempty"`
	Decision  *message.LLMDecisionRecord `json:"decision,omitempty"`
}

// Flow is a reconstructed burst of MCP activity: every record whose gap
// from its predecessor is within the configured silence window.
type Flow struct {
	FlowID            string          `json:"flow_id"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	DurationMs        int64           `json:"duration_ms"`
	EventCount        int             `json:"event_count"`
	ServersInvolved   []string        `json:"servers_involved"`
	CrossServerFlow   bool            `json:"cross_server_flow"`
	MCPCalls          []MCPCall       `json:"mcp_calls"`
	LLMDecisions      []message.LLMDecisionRecord `json:"llm_decisions,omitempty"`
	Timeline          []TimelineEvent `json:"timeline"`
	Success           bool            `json:"success"`
	HasUserContext    bool            `json:"has_user_context"`
	UserPrompt        string          `json:"user_prompt"`
	LLMReasoning      string          `json:"llm_reasoning"`
}

// Package message defines the Raw Message Record and LLM Decision Record
// types captured by the proxy, plus the in-memory request/response
// correlation table used to compute response latency.
package message

import (
	"encoding/json"
	"time"

	"github.com/cogtrace/mcpaudit/pkg/mcp"
)

// RawMessageRecord is the atomic unit of capture: one JSON-RPC message
// observed on the wire in a given direction, tagged with host/server
// identity and (for responses) the latency against its matching request.
type RawMessageRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Direction mcp.Direction   `json:"direction"`
	Host      string          `json:"host"`
	Server    string          `json:"server"`
	Payload   json.RawMessage `json:"payload"`
	LatencyMs *int64          `json:"latency_ms,omitempty"`

	// Method, IsRequest/IsResponse/HasError cache the framing codec's
	// single-pass probe of Payload so downstream consumers (reconstructor,
	// scorer) never need to re-parse the opaque payload, per the Non-goal
	// that the core does not interpret payload semantics beyond method
	// names / id / error presence.
	Method     string `json:"method,omitempty"`
	IsRequest  bool   `json:"is_request"`
	IsResponse bool   `json:"is_response"`
	HasError   bool   `json:"has_error"`
}

// ToolCall describes a tools/call request extracted from a Raw Message
// Record's payload, used by the flow reconstructor and scorer.
type ToolCall struct {
	CallID    string                 `json:"call_id"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// LLMDecisionRecord is the optional sibling stream produced by host
// adapters when available. When absent, flows carry HasUserContext=false
// and synthesize "[Inferred] ..." placeholders.
type LLMDecisionRecord struct {
	Timestamp         time.Time  `json:"timestamp"`
	UserPrompt        string     `json:"user_prompt"`
	Reasoning         string     `json:"reasoning"`
	ToolsConsidered   []string   `json:"tools_considered"`
	ToolsSelected     []string   `json:"tools_selected"`
	ToolCalls         []ToolCall `json:"tool_calls"`
	ProcessingTimeMs  int64      `json:"processing_time_ms"`
	ConfidenceScore   float64    `json:"confidence_score"`
	Success           bool       `json:"success"`
}

// InferredUserPrompt is substituted when a flow has no correlated LLM
// Decision Record.
const InferredUserPrompt = "[Inferred]"

// NewRecordFromMessage builds a Raw Message Record from a captured
// pkg/mcp.Message. latencyMs is nil unless the caller has already computed
// it via the correlation table.
func NewRecordFromMessage(id string, msg *mcp.Message, host, server string, latencyMs *int64) RawMessageRecord {
	rec := RawMessageRecord{
		ID:         id,
		Timestamp:  msg.Timestamp,
		Direction:  msg.Direction,
		Host:       host,
		Server:     server,
		Payload:    json.RawMessage(append([]byte(nil), msg.Raw...)),
		Method:     msg.Method(),
		IsRequest:  msg.IsRequest(),
		IsResponse: msg.IsResponse(),
		HasError:   msg.HasError(),
		LatencyMs:  latencyMs,
	}
	return rec
}

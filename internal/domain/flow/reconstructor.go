package flow

import (
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
)

// DefaultWindowSeconds is the silence gap that closes one flow and opens
// the next, absent configuration.
const DefaultWindowSeconds = 30

// decisionPadding is how far outside a flow's bounds an LLM Decision
// Record may still be considered part of its timeline.
const decisionPadding = time.Second

// Reconstructor groups a time-ordered (but not necessarily sorted) slice
// of Raw Message Records into flows separated by gaps greater than
// WindowSeconds. Input is expected to already be filtered by time range
// and server (see internal/adapter/outbound/store.Reader.ReadMessages);
// Reconstructor only sorts, groups, and summarizes.
type Reconstructor struct {
	WindowSeconds int
}

// NewReconstructor builds a Reconstructor with the given gap window,
// falling back to DefaultWindowSeconds when windowSeconds <= 0.
func NewReconstructor(windowSeconds int) *Reconstructor {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return &Reconstructor{WindowSeconds: windowSeconds}
}

// Reconstruct groups records into flows and correlates llmDecisions into
// each flow's timeline. Records are not mutated; the input is copied
// before the stable sort.
func (r *Reconstructor) Reconstruct(records []message.RawMessageRecord, llmDecisions []message.LLMDecisionRecord) []Flow {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]message.RawMessageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	window := time.Duration(r.WindowSeconds) * time.Second

	var flows []Flow
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Timestamp.Sub(sorted[i-1].Timestamp) > window {
			flows = append(flows, r.buildFlow(sorted[start:i], llmDecisions))
			start = i
		}
	}
	return flows
}

func (r *Reconstructor) buildFlow(members []message.RawMessageRecord, llmDecisions []message.LLMDecisionRecord) Flow {
	startTime := members[0].Timestamp
	endTime := members[len(members)-1].Timestamp

	servers := make(map[string]struct{})
	for _, rec := range members {
		servers[rec.Server] = struct{}{}
	}
	serverList := make([]string, 0, len(servers))
	for s := range servers {
		serverList = append(serverList, s)
	}
	sort.Strings(serverList)

	calls, success := collectMCPCalls(members)
	timeline := buildTimeline(members, llmDecisions, startTime, endTime)

	decision, hasContext := firstCorrelatedDecision(llmDecisions, startTime, endTime)
	userPrompt := message.InferredUserPrompt
	reasoning := message.InferredUserPrompt
	var decisions []message.LLMDecisionRecord
	if hasContext {
		userPrompt = decision.UserPrompt
		reasoning = decision.Reasoning
		decisions = correlatedDecisions(llmDecisions, startTime, endTime)
	}

	return Flow{
		FlowID:          flowID(startTime),
		StartTime:       startTime,
		EndTime:         endTime,
		DurationMs:      endTime.Sub(startTime).Milliseconds(),
		EventCount:      len(members),
		ServersInvolved: serverList,
		CrossServerFlow: len(serverList) > 1,
		MCPCalls:        calls,
		LLMDecisions:    decisions,
		Timeline:        timeline,
		Success:         success,
		HasUserContext:  hasContext,
		UserPrompt:      userPrompt,
		LLMReasoning:    reasoning,
	}
}

// flowID derives a flow identifier from the Unix second of its start time.
func flowID(start time.Time) string {
	return fmt.Sprintf("flow-%d", start.Unix())
}

// collectMCPCalls pairs every tools/call request in members with its
// matching response (by server + payload id), if any. success is true iff
// every observed tools/call request has a matching, error-free response.
func collectMCPCalls(members []message.RawMessageRecord) (calls []MCPCall, success bool) {
	responses := make(map[string]*message.RawMessageRecord)
	for i := range members {
		rec := members[i]
		if !rec.IsResponse {
			continue
		}
		id := payloadID(rec.Payload)
		if id == "" {
			continue
		}
		responses[rec.Server+"\x00"+id] = &members[i]
	}

	success = true
	for _, rec := range members {
		if !rec.IsRequest || rec.Method != "tools/call" {
			continue
		}
		id := payloadID(rec.Payload)
		name, args := toolCallArgs(rec.Payload)

		call := MCPCall{
			ToolName:  name,
			Arguments: args,
			Request:   rec,
		}
		if resp, ok := responses[rec.Server+"\x00"+id]; ok && id != "" {
			call.Response = resp
			call.Success = !resp.HasError
		}
		if call.Response == nil || !call.Success {
			success = false
		}
		calls = append(calls, call)
	}
	return calls, success
}

// buildTimeline merges the flow's Raw Message Records with any LLM
// Decision Records whose timestamp lies within [start-padding, end+padding],
// in timestamp order.
func buildTimeline(members []message.RawMessageRecord, llmDecisions []message.LLMDecisionRecord, start, end time.Time) []TimelineEvent {
	timeline := make([]TimelineEvent, 0, len(members))
	for i := range members {
		timeline = append(timeline, TimelineEvent{
			Timestamp: members[i].Timestamp,
			Kind:      TimelineMessage,
			Message:   &members[i],
		})
	}

	lo := start.Add(-decisionPadding)
	hi := end.Add(decisionPadding)
	for i := range llmDecisions {
		d := llmDecisions[i]
		if d.Timestamp.Before(lo) || d.Timestamp.After(hi) {
			continue
		}
		timeline = append(timeline, TimelineEvent{
			Timestamp: d.Timestamp,
			Kind:      TimelineLLMDecision,
			Decision:  &llmDecisions[i],
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})
	return timeline
}

func correlatedDecisions(llmDecisions []message.LLMDecisionRecord, start, end time.Time) []message.LLMDecisionRecord {
	lo := start.Add(-decisionPadding)
	hi := end.Add(decisionPadding)
	var out []message.LLMDecisionRecord
	for _, d := range llmDecisions {
		if d.Timestamp.Before(lo) || d.Timestamp.After(hi) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func firstCorrelatedDecision(llmDecisions []message.LLMDecisionRecord, start, end time.Time) (message.LLMDecisionRecord, bool) {
	lo := start.Add(-decisionPadding)
	hi := end.Add(decisionPadding)
	for _, d := range llmDecisions {
		if !d.Timestamp.Before(lo) && !d.Timestamp.After(hi) {
			return d, true
		}
	}
	return message.LLMDecisionRecord{}, false
}

// payloadID extracts the JSON-RPC "id" field from a raw payload as a
// canonical string, or "" if absent (notifications have no id).
func payloadID(payload []byte) string {
	result := gjson.GetBytes(payload, "id")
	if !result.Exists() {
		return ""
	}
	return result.Raw
}

// toolCallArgs extracts params.name and params.arguments from a tools/call
// request payload.
func toolCallArgs(payload []byte) (string, map[string]interface{}) {
	name := gjson.GetBytes(payload, "params.name").String()
	argsResult := gjson.GetBytes(payload, "params.arguments")
	if !argsResult.IsObject() {
		return name, nil
	}
	args, ok := argsResult.Value().(map[string]interface{})
	if !ok {
		return name, nil
	}
	return name, args
}

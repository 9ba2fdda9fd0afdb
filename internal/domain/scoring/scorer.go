package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cogtrace/mcpaudit/internal/domain/flow"
)

// configFrictionKeywords mark error messages that point at setup/permission
// problems rather than a straightforward tool failure.
var configFrictionKeywords = []string{"config", "setup", "missing", "invalid", "permission", "unauthorized"}

// retryFrictionKeywords mark error messages indicating the user is hitting
// the same wall repeatedly.
var retryFrictionKeywords = []string{"timeout", "failed", "again", "retry", "error"}

// Scorer computes the cognitive load score for a reconstructed flow.
type Scorer struct {
	weights Weights
}

// NewScorer builds a Scorer with the given sub-score weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the sub-score weight table this Scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes all five sub-scores, the weighted composite, the letter
// grade, and the derived usability score for f.
func (s *Scorer) Score(f flow.Flow) FlowScore {
	prompt := promptComplexity(f.UserPrompt)
	context := contextSwitching(f)
	retry, retryBreakdown := retryFrustration(f)
	config, configBreakdown := configurationFriction(f)
	integration := integrationCognition(f)

	composite := clamp(
		s.weights.PromptComplexity*prompt+
			s.weights.ContextSwitching*context+
			s.weights.RetryFrustration*retry+
			s.weights.ConfigurationFriction*config+
			s.weights.IntegrationCognition*integration,
		0, 100,
	)

	return FlowScore{
		PromptComplexity:      prompt,
		ContextSwitching:      context,
		RetryFrustration:      retry,
		RetryBreakdown:        retryBreakdown,
		ConfigurationFriction: config,
		ConfigBreakdown:       configBreakdown,
		IntegrationCognition:  integration,
		Composite:             composite,
		Grade:                 gradeFor(composite),
		Usability:             clamp(100-composite, 0, 100),
	}
}

// contextSwitching counts direction changes between adjacent message
// timeline entries: 20 + 15*changes, clamped [0,100].
func contextSwitching(f flow.Flow) float64 {
	changes := 0
	var prev *flow.TimelineEvent
	for i := range f.Timeline {
		ev := &f.Timeline[i]
		if ev.Kind != flow.TimelineMessage || ev.Message == nil {
			continue
		}
		if prev != nil && prev.Message != nil && prev.Message.Direction != ev.Message.Direction {
			changes++
		}
		prev = ev
	}
	return clamp(20+15*float64(changes), 0, 100)
}

// retryFrustration implements the heaviest sub-score: retries, failures,
// error-keyword hits, and a latency penalty ladder.
func retryFrustration(f flow.Flow) (float64, RetryFrustrationBreakdown) {
	const base = 10.0

	retryCount := countRetries(f)
	retryPenalty := float64(retryCount) * 25

	failedCount := 0
	keywordHits := 0
	var maxLatencyMs int64
	for _, call := range f.MCPCalls {
		if call.Response == nil {
			continue
		}
		if call.Response.LatencyMs != nil && *call.Response.LatencyMs > maxLatencyMs {
			maxLatencyMs = *call.Response.LatencyMs
		}
		if !call.Response.HasError {
			continue
		}
		failedCount++
		msg := strings.ToLower(errorMessage(call.Response.Payload))
		keywordHits += countWordHits(msg, retryFrictionKeywords)
	}
	failurePenalty := float64(failedCount) * 30
	errorPenalty := float64(keywordHits) * 5

	latencyPenalty, thresholdMs := latencyLadder(maxLatencyMs, []latencyTier{
		{30000, 20},
		{10000, 10},
		{2000, 5},
	})

	explanations := []string{}
	if retryCount > 0 {
		explanations = append(explanations, fmt.Sprintf("%d retried call(s) detected", retryCount))
	}
	if failedCount > 0 {
		explanations = append(explanations, fmt.Sprintf("%d failed call(s)", failedCount))
	}
	if keywordHits > 0 {
		explanations = append(explanations, fmt.Sprintf("%d frustration keyword hit(s) in error messages", keywordHits))
	}
	if latencyPenalty > 0 {
		explanations = append(explanations, fmt.Sprintf("slowest call latency %dms crossed the %dms threshold", maxLatencyMs, thresholdMs))
	}

	breakdown := RetryFrustrationBreakdown{
		Base:               base,
		RetryPenalty:       retryPenalty,
		RetryCount:         retryCount,
		FailurePenalty:     failurePenalty,
		ErrorPenalty:       errorPenalty,
		LatencyPenalty:     latencyPenalty,
		LatencyMs:          maxLatencyMs,
		LatencyThresholdMs: thresholdMs,
		Explanations:       explanations,
	}
	score := clamp(base+retryPenalty+failurePenalty+errorPenalty+latencyPenalty, 0, 100)
	return score, breakdown
}

// configurationFriction implements the auth/param/keyword/latency penalty
// formula for setup- and permission-shaped failures.
func configurationFriction(f flow.Flow) (float64, ConfigurationFrictionBreakdown) {
	const base = 10.0

	authCount, paramCount, keywordCount := 0, 0, 0
	var maxLatencyMs int64
	for _, call := range f.MCPCalls {
		if call.Response == nil {
			continue
		}
		if call.Response.LatencyMs != nil && *call.Response.LatencyMs > maxLatencyMs {
			maxLatencyMs = *call.Response.LatencyMs
		}
		if !call.Response.HasError {
			continue
		}
		code := errorCode(call.Response.Payload)
		switch code {
		case 401, 403:
			authCount++
		case 400, 422:
			paramCount++
		}
		msg := strings.ToLower(errorMessage(call.Response.Payload))
		keywordCount += countWordHits(msg, configFrictionKeywords)
	}

	authPenalty := clamp(float64(authCount)*25, 0, 50)
	paramPenalty := float64(paramCount) * 15
	keywordPenalty := float64(keywordCount) * 8

	latencyPenalty := 0.0
	const latencyThreshold = 45000
	if maxLatencyMs >= latencyThreshold {
		latencyPenalty = 15
	}

	explanations := []string{}
	if authCount > 0 {
		explanations = append(explanations, fmt.Sprintf("%d auth error(s) (401/403)", authCount))
	}
	if paramCount > 0 {
		explanations = append(explanations, fmt.Sprintf("%d parameter error(s) (400/422)", paramCount))
	}
	if keywordCount > 0 {
		explanations = append(explanations, fmt.Sprintf("%d configuration keyword hit(s) in error messages", keywordCount))
	}
	if latencyPenalty > 0 {
		explanations = append(explanations, fmt.Sprintf("slowest call latency %dms crossed the %dms threshold", maxLatencyMs, latencyThreshold))
	}

	breakdown := ConfigurationFrictionBreakdown{
		Base:               base,
		AuthPenalty:        authPenalty,
		AuthCount:          authCount,
		ParamPenalty:       paramPenalty,
		ParamCount:         paramCount,
		KeywordPenalty:     keywordPenalty,
		KeywordCount:       keywordCount,
		LatencyPenalty:     latencyPenalty,
		LatencyMs:          maxLatencyMs,
		LatencyThresholdMs: latencyThreshold,
		Explanations:       explanations,
	}
	score := clamp(base+authPenalty+paramPenalty+keywordPenalty+latencyPenalty, 0, 100)
	return score, breakdown
}

// integrationCognition rewards protocol/method variety with a penalty, but
// gives a bonus for simple, single-server, few-method usage.
func integrationCognition(f flow.Flow) float64 {
	const base = 20.0

	directions := make(map[string]struct{})
	methods := make(map[string]struct{})
	for _, ev := range f.Timeline {
		if ev.Kind != flow.TimelineMessage || ev.Message == nil {
			continue
		}
		directions[ev.Message.Direction.String()] = struct{}{}
		if ev.Message.Method != "" {
			methods[ev.Message.Method] = struct{}{}
		}
	}

	score := base
	if len(directions) > 1 {
		score += 10 * float64(len(directions)-1)
	}
	score += 3 * float64(len(methods))

	if len(methods) <= 3 && len(f.ServersInvolved) <= 1 {
		score -= 15
	}

	return clamp(score, 0, 100)
}

// countRetries counts tools/call requests sharing (server, tool name,
// normalized arguments) with an earlier call in the same flow.
func countRetries(f flow.Flow) int {
	seen := make(map[string]int)
	retries := 0
	for _, call := range f.MCPCalls {
		key := retryKey(call.Request.Server, call.ToolName, call.Arguments)
		seen[key]++
		if seen[key] > 1 {
			retries++
		}
	}
	return retries
}

func retryKey(server, tool string, args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(server)
	b.WriteByte(0)
	b.WriteString(tool)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		v, _ := json.Marshal(args[k])
		b.Write(v)
	}
	return b.String()
}

type latencyTier struct {
	thresholdMs int64
	penalty     float64
}

// latencyLadder returns the penalty and threshold for the highest tier
// latencyMs meets or exceeds (tiers must be supplied highest-first).
func latencyLadder(latencyMs int64, tiers []latencyTier) (float64, int64) {
	for _, tier := range tiers {
		if latencyMs >= tier.thresholdMs {
			return tier.penalty, tier.thresholdMs
		}
	}
	return 0, 0
}

func errorCode(payload []byte) int64 {
	return gjson.GetBytes(payload, "error.code").Int()
}

func errorMessage(payload []byte) string {
	return gjson.GetBytes(payload, "error.message").String()
}

package scoring

// RetryFrustrationBreakdown is the itemized penalty trail behind the
// retry_frustration sub-score, surfaced verbatim in the usability report.
type RetryFrustrationBreakdown struct {
	Base               float64  `json:"base"`
	RetryPenalty       float64  `json:"retry_penalty"`
	RetryCount         int      `json:"retry_count"`
	FailurePenalty     float64  `json:"failure_penalty"`
	ErrorPenalty       float64  `json:"error_penalty"`
	LatencyPenalty     float64  `json:"latency_penalty"`
	LatencyMs          int64    `json:"latency_ms"`
	LatencyThresholdMs int64    `json:"latency_threshold_ms"`
	Explanations       []string `json:"explanations"`
}

// ConfigurationFrictionBreakdown is the itemized penalty trail behind the
// configuration_friction sub-score.
type ConfigurationFrictionBreakdown struct {
	Base               float64  `json:"base"`
	AuthPenalty        float64  `json:"auth_penalty"`
	AuthCount          int      `json:"auth_count"`
	ParamPenalty       float64  `json:"param_penalty"`
	ParamCount         int      `json:"param_count"`
	KeywordPenalty     float64  `json:"keyword_penalty"`
	KeywordCount       int      `json:"keyword_count"`
	LatencyPenalty     float64  `json:"latency_penalty"`
	LatencyMs          int64    `json:"latency_ms"`
	LatencyThresholdMs int64    `json:"latency_threshold_ms"`
	Explanations       []string `json:"explanations"`
}

// FlowScore is the full scorer output for a single flow: five sub-scores
// (two with a detailed penalty breakdown), the weighted composite, its
// letter grade, and the derived usability score.
type FlowScore struct {
	PromptComplexity      float64                        `json:"prompt_complexity"`
	ContextSwitching      float64                        `json:"context_switching"`
	RetryFrustration      float64                        `json:"retry_frustration"`
	RetryBreakdown        RetryFrustrationBreakdown      `json:"retry_frustration_breakdown"`
	ConfigurationFriction float64                        `json:"configuration_friction"`
	ConfigBreakdown       ConfigurationFrictionBreakdown `json:"configuration_friction_breakdown"`
	IntegrationCognition  float64                        `json:"integration_cognition"`
	Composite             float64                        `json:"composite"`
	Grade                 Grade                          `json:"grade"`
	Usability              float64                       `json:"usability"`
}

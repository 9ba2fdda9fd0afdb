// Package config provides configuration types for mcpaudit.
//
// This is a minimalist, file-based configuration schema for a stdio MCP
// proxy that captures traffic, reconstructs flows, and scores cognitive
// load. It intentionally excludes the access-control surface of a security
// gateway:
//
//   - NO authentication/authorization (no identities, API keys, policies)
//   - NO rate limiting as an access-control feature
//   - NO TLS inspection / HTTP forward gateway
//   - NO admin web interface
//
// mcpaudit observes and reports; it never allows, denies, or mutates a
// message.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for mcpaudit.
type Config struct {
	// Proxy configures the stdio supervisor.
	Proxy ProxyConfig `yaml:"proxy" mapstructure:"proxy"`

	// Store configures the append-only message and decision stores.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Scoring configures the cognitive-load weight table.
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`

	// Report configures default report generation.
	Report ReportConfig `yaml:"report" mapstructure:"report"`

	// Metrics configures the live metrics exporter (pull + push sinks).
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Tracing configures the OpenTelemetry tracer used for per-message spans,
	// ambient observability distinct from the cognitive-load metrics above.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// HostConfig configures the one-shot config rewriter.
	HostConfig HostConfigConfig `yaml:"host_config" mapstructure:"host_config"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// DevMode enables development features (verbose logging, permissive defaults).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ProxyConfig configures the stdio proxy supervisor.
type ProxyConfig struct {
	// Host is the default host name label attached to captured records
	// (e.g. "claude-desktop", "cursor"). Overridable with --host.
	Host string `yaml:"host" mapstructure:"host"`

	// Server is the default server name label for the proxied upstream.
	// Overridable with --server.
	Server string `yaml:"server" mapstructure:"server"`

	// TargetCommand is the upstream MCP server executable to spawn.
	TargetCommand string `yaml:"target_command" mapstructure:"target_command"`

	// TargetArgs are the arguments passed to TargetCommand.
	TargetArgs []string `yaml:"target_args" mapstructure:"target_args"`

	// SpawnTimeout is a child spawn time limit (e.g. "10s"). It is defaulted
	// and validated here, but the supervisor does not read it.
	SpawnTimeout string `yaml:"spawn_timeout" mapstructure:"spawn_timeout" validate:"omitempty"`

	// ShutdownGrace is a wait between signaling the child and forcing
	// termination (e.g. "5s"). The supervisor does not read it; its grace
	// period is fixed at 5s.
	ShutdownGrace string `yaml:"shutdown_grace" mapstructure:"shutdown_grace" validate:"omitempty"`

	// WindowSeconds is the default flow-grouping gap threshold W.
	// Overridable with MCP_AUDIT_WINDOW_SECONDS.
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds" validate:"omitempty,min=1"`

	// CorrelationTTL bounds how long an unmatched request waits in the
	// request/response correlation table before eviction (e.g. "10m").
	CorrelationTTL string `yaml:"correlation_ttl" mapstructure:"correlation_ttl" validate:"omitempty"`

	// CorrelationMaxEntries bounds the correlation table size.
	CorrelationMaxEntries int `yaml:"correlation_max_entries" mapstructure:"correlation_max_entries" validate:"omitempty,min=1"`

	// CaptureQueueSoftCap bounds the in-memory capture queue between the
	// forwarding path and the message store. Once full, the oldest
	// buffered record is dropped to make room for the newest.
	CaptureQueueSoftCap int `yaml:"capture_queue_soft_cap" mapstructure:"capture_queue_soft_cap" validate:"omitempty,min=1"`
}

// StoreConfig configures the append-only capture stores.
type StoreConfig struct {
	// OutputDir is the directory containing the message and decision store
	// files and the host config backups.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	// MessagesFile is the filename for the raw message store, relative to
	// OutputDir unless absolute.
	MessagesFile string `yaml:"messages_file" mapstructure:"messages_file"`

	// DecisionsFile is the filename for the optional LLM decision store.
	DecisionsFile string `yaml:"decisions_file" mapstructure:"decisions_file"`
}

// ScoringConfig configures the cognitive-load scorer.
type ScoringConfig struct {
	// Weights is the sub-score weight table. Must sum to 1.0 (within
	// 1e-9) — validated by the custom "weights_sum_one" rule.
	Weights WeightsConfig `yaml:"weights" mapstructure:"weights" validate:"weights_sum_one"`
}

// WeightsConfig is the weight table for the five cognitive-load sub-scores.
// Defaults match spec.md's docs-stated weights.
type WeightsConfig struct {
	PromptComplexity      float64 `yaml:"prompt_complexity" mapstructure:"prompt_complexity"`
	ContextSwitching      float64 `yaml:"context_switching" mapstructure:"context_switching"`
	RetryFrustration      float64 `yaml:"retry_frustration" mapstructure:"retry_frustration"`
	ConfigurationFriction float64 `yaml:"configuration_friction" mapstructure:"configuration_friction"`
	IntegrationCognition  float64 `yaml:"integration_cognition" mapstructure:"integration_cognition"`
}

// ReportConfig configures default report generation.
type ReportConfig struct {
	// OutputDir is the directory generated reports are written to.
	// Defaults to Store.OutputDir when empty.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	// DefaultFormat is the default serialization ("json", "html", or "txt").
	DefaultFormat string `yaml:"default_format" mapstructure:"default_format" validate:"omitempty,oneof=json html txt"`
}

// MetricsConfig configures the live metrics exporter.
type MetricsConfig struct {
	// Enabled turns on the pull endpoint and any configured push sinks.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// HTTPAddr is the address the /metrics and /live/ws endpoints listen
	// on (e.g. "127.0.0.1:9090").
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// ExportIntervalSeconds throttles how often the sliding-window
	// aggregate is recomputed.
	ExportIntervalSeconds int `yaml:"export_interval_seconds" mapstructure:"export_interval_seconds" validate:"omitempty,min=1"`

	// Webhook configures the optional webhook push sink.
	Webhook WebhookSinkConfig `yaml:"webhook" mapstructure:"webhook"`

	// OTLP configures the optional OTLP metrics push sink.
	OTLP OTLPSinkConfig `yaml:"otlp" mapstructure:"otlp"`
}

// WebhookSinkConfig configures the webhook push sink.
type WebhookSinkConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
}

// OTLPSinkConfig configures the OTLP metrics push sink.
type OTLPSinkConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// TracingConfig configures the OpenTelemetry tracer that emits one span per
// forwarded MCP message.
type TracingConfig struct {
	// Enabled turns on span emission. Disabled by default: a CLI tool
	// should not assume a collector is running.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ExporterType selects the trace exporter: "none", "stdout", or
	// "otlp-http".
	ExporterType string `yaml:"exporter_type" mapstructure:"exporter_type" validate:"omitempty,oneof=none stdout otlp-http"`

	// OTLPEndpoint is the collector endpoint used by the otlp-http exporter.
	OTLPEndpoint string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`

	// SampleRate is the fraction of spans sampled, in [0, 1].
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"omitempty,min=0,max=1"`
}

// HostConfigConfig configures the one-shot MCP host config rewriter.
type HostConfigConfig struct {
	// Path is the absolute path to the host's MCP config file (e.g. the
	// IDE's mcp.json). Required to run the rewriter.
	Path string `yaml:"path" mapstructure:"path"`

	// ProxyExecutable is the path written into the rewritten command field.
	// Defaults to the currently running binary's path when empty.
	ProxyExecutable string `yaml:"proxy_executable" mapstructure:"proxy_executable"`
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Proxy.Host == "" {
		c.Proxy.Host = "dev-host"
	}
	if c.LogLevel == "" {
		c.LogLevel = "debug"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Proxy.Host == "" {
		c.Proxy.Host = "mcpaudit"
	}
	if c.Proxy.SpawnTimeout == "" {
		c.Proxy.SpawnTimeout = "10s"
	}
	if c.Proxy.ShutdownGrace == "" {
		c.Proxy.ShutdownGrace = "5s"
	}
	if c.Proxy.WindowSeconds == 0 {
		c.Proxy.WindowSeconds = 30
	}
	if c.Proxy.CorrelationTTL == "" {
		c.Proxy.CorrelationTTL = "10m"
	}
	if c.Proxy.CorrelationMaxEntries == 0 {
		c.Proxy.CorrelationMaxEntries = 10000
	}
	if c.Proxy.CaptureQueueSoftCap == 0 {
		// Mirrors proxy.DefaultSoftCap.
		c.Proxy.CaptureQueueSoftCap = 10000
	}

	if c.Store.OutputDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Store.OutputDir = home + "/.mcpaudit"
		} else {
			c.Store.OutputDir = ".mcpaudit"
		}
	}
	if c.Store.MessagesFile == "" {
		c.Store.MessagesFile = "mcp_audit_messages.jsonl"
	}
	if c.Store.DecisionsFile == "" {
		c.Store.DecisionsFile = "mcp_audit_decisions.jsonl"
	}

	// Docs-stated weights from spec.md §4.6, surfaced here so operators can
	// retune without recompiling (see spec.md Open Questions).
	if zeroWeights(c.Scoring.Weights) {
		c.Scoring.Weights = WeightsConfig{
			PromptComplexity:      0.15,
			ContextSwitching:      0.20,
			RetryFrustration:      0.30,
			ConfigurationFriction: 0.25,
			IntegrationCognition:  0.10,
		}
	}

	if c.Report.OutputDir == "" {
		c.Report.OutputDir = c.Store.OutputDir
	}
	if c.Report.DefaultFormat == "" {
		c.Report.DefaultFormat = "json"
	}

	if !viper.IsSet("metrics.enabled") {
		c.Metrics.Enabled = true
	}
	if c.Metrics.HTTPAddr == "" {
		c.Metrics.HTTPAddr = "127.0.0.1:9090"
	}
	if c.Metrics.ExportIntervalSeconds == 0 {
		c.Metrics.ExportIntervalSeconds = 10
	}

	if c.Tracing.ExporterType == "" {
		c.Tracing.ExporterType = "none"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
}

func zeroWeights(w WeightsConfig) bool {
	return w.PromptComplexity == 0 && w.ContextSwitching == 0 && w.RetryFrustration == 0 &&
		w.ConfigurationFriction == 0 && w.IntegrationCognition == 0
}

// Package config provides configuration loading for mcpaudit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for mcpaudit.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("mcpaudit")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: MCP_AUDIT_HOST, MCP_AUDIT_OUTPUT_DIR,
	// MCP_AUDIT_WINDOW_SECONDS, etc.
	viper.SetEnvPrefix("MCP_AUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an mcpaudit config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper from
// matching the binary "mcpaudit" (no extension) in the current directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".mcpaudit"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "mcpaudit"))
		}
	} else {
		paths = append(paths, "/etc/mcpaudit")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for mcpaudit.yaml or
// .yml. Returns the full path of the first match, or empty string if none
// found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "mcpaudit"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the config keys named explicitly in spec.md for
// environment variable support, plus the rest of the nested schema so any
// field can be overridden via MCP_AUDIT_* without a config file.
//
// Example: MCP_AUDIT_HOST overrides proxy.host, MCP_AUDIT_OUTPUT_DIR
// overrides store.output_dir, MCP_AUDIT_WINDOW_SECONDS overrides
// proxy.window_seconds.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("proxy.host", "MCP_AUDIT_HOST")
	_ = viper.BindEnv("proxy.server")
	_ = viper.BindEnv("proxy.target_command")
	_ = viper.BindEnv("proxy.spawn_timeout")
	_ = viper.BindEnv("proxy.shutdown_grace")
	_ = viper.BindEnv("proxy.window_seconds", "MCP_AUDIT_WINDOW_SECONDS")
	_ = viper.BindEnv("proxy.correlation_ttl")
	_ = viper.BindEnv("proxy.correlation_max_entries")

	_ = viper.BindEnv("store.output_dir", "MCP_AUDIT_OUTPUT_DIR")
	_ = viper.BindEnv("store.messages_file")
	_ = viper.BindEnv("store.decisions_file")

	_ = viper.BindEnv("report.output_dir")
	_ = viper.BindEnv("report.default_format")

	_ = viper.BindEnv("metrics.enabled")
	_ = viper.BindEnv("metrics.http_addr")
	_ = viper.BindEnv("metrics.export_interval_seconds")
	_ = viper.BindEnv("metrics.webhook.enabled")
	_ = viper.BindEnv("metrics.webhook.url")
	_ = viper.BindEnv("metrics.otlp.enabled")
	_ = viper.BindEnv("metrics.otlp.endpoint")

	_ = viper.BindEnv("tracing.enabled")
	_ = viper.BindEnv("tracing.exporter_type")
	_ = viper.BindEnv("tracing.otlp_endpoint")
	_ = viper.BindEnv("tracing.sample_rate")

	_ = viper.BindEnv("host_config.path")
	_ = viper.BindEnv("host_config.proxy_executable")

	_ = viper.BindEnv("dev_mode")
	_ = viper.BindEnv("log_level")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config.
// It also applies cfg.SetDevDefaults() and cfg.Validate(), so the returned
// Config is fully initialized.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT apply dev defaults or validate. Use this when CLI flags may override
// DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

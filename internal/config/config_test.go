package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Proxy.Host != "mcpaudit" {
		t.Errorf("Proxy.Host = %q, want %q", cfg.Proxy.Host, "mcpaudit")
	}
	if cfg.Proxy.WindowSeconds != 30 {
		t.Errorf("WindowSeconds default = %d, want 30", cfg.Proxy.WindowSeconds)
	}
	if cfg.Proxy.ShutdownGrace != "5s" {
		t.Errorf("ShutdownGrace = %q, want %q", cfg.Proxy.ShutdownGrace, "5s")
	}
	if cfg.Metrics.Enabled != true {
		t.Error("Metrics.Enabled should default to true")
	}
}

func TestConfig_SetDefaults_Tracing(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Tracing.ExporterType != "none" {
		t.Errorf("Tracing.ExporterType = %q, want %q", cfg.Tracing.ExporterType, "none")
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %v, want 1.0", cfg.Tracing.SampleRate)
	}
	if cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled should default to false")
	}
}

func TestConfig_SetDefaults_Weights(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	w := cfg.Scoring.Weights
	sum := w.PromptComplexity + w.ContextSwitching + w.RetryFrustration +
		w.ConfigurationFriction + w.IntegrationCognition
	if sum < 0.999999999 || sum > 1.000000001 {
		t.Errorf("default weights sum = %v, want 1.0", sum)
	}
	if w.RetryFrustration != 0.30 {
		t.Errorf("RetryFrustration = %v, want 0.30 (the heaviest weight)", w.RetryFrustration)
	}
}

func TestConfig_SetDefaults_PreservesExistingWeights(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Scoring: ScoringConfig{
			Weights: WeightsConfig{
				PromptComplexity:      0.2,
				ContextSwitching:      0.2,
				RetryFrustration:      0.2,
				ConfigurationFriction: 0.2,
				IntegrationCognition:  0.2,
			},
		},
	}
	cfg.SetDefaults()

	if cfg.Scoring.Weights.RetryFrustration != 0.2 {
		t.Errorf("custom weights were overwritten: got %v, want 0.2", cfg.Scoring.Weights.RetryFrustration)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Proxy: ProxyConfig{
			Host:          "custom-host",
			WindowSeconds: 60,
		},
		Store: StoreConfig{
			OutputDir: "/var/mcpaudit",
		},
	}
	cfg.SetDefaults()

	if cfg.Proxy.Host != "custom-host" {
		t.Errorf("Host was overwritten: got %q, want %q", cfg.Proxy.Host, "custom-host")
	}
	if cfg.Proxy.WindowSeconds != 60 {
		t.Errorf("WindowSeconds was overwritten: got %d, want 60", cfg.Proxy.WindowSeconds)
	}
	if cfg.Store.OutputDir != "/var/mcpaudit" {
		t.Errorf("OutputDir was overwritten: got %q, want %q", cfg.Store.OutputDir, "/var/mcpaudit")
	}
}

func TestConfig_SetDefaults_ReportOutputDirFallsBackToStore(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Store: StoreConfig{OutputDir: "/data/mcpaudit"},
	}
	cfg.SetDefaults()

	if cfg.Report.OutputDir != "/data/mcpaudit" {
		t.Errorf("Report.OutputDir = %q, want %q (fallback to Store.OutputDir)", cfg.Report.OutputDir, "/data/mcpaudit")
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.Proxy.Host != "dev-host" {
		t.Errorf("Proxy.Host = %q, want %q", cfg.Proxy.Host, "dev-host")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcpaudit.yaml")
	_ = os.WriteFile(cfgPath, []byte("proxy:\n  host: test\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcpaudit.yml")
	_ = os.WriteFile(cfgPath, []byte("proxy:\n  host: test\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "mcpaudit" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "mcpaudit"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "mcpaudit.yaml")
	ymlPath := filepath.Join(dir, "mcpaudit.yml")
	_ = os.WriteFile(yamlPath, []byte("proxy:\n  host: yaml\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("proxy:\n  host: yml\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}

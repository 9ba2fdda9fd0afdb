package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	metricsadapter "github.com/cogtrace/mcpaudit/internal/adapter/inbound/metrics"
	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/hostconfig"
	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/pushsink"
	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/store"
	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/upstream"
	"github.com/cogtrace/mcpaudit/internal/config"
	"github.com/cogtrace/mcpaudit/internal/domain/flow"
	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/internal/domain/proxy"
	"github.com/cogtrace/mcpaudit/internal/domain/scoring"
	"github.com/cogtrace/mcpaudit/internal/obs"
	"github.com/cogtrace/mcpaudit/internal/port/outbound"
	"github.com/cogtrace/mcpaudit/internal/service"
)

const (
	exitOK             = 0
	exitInvalidArgs    = 2
	exitConfigIOError  = 3
	exitChildSpawnFail = 4
	exitCaptureDisk    = 5
	exitOther          = 1
)

var (
	proxyTargetCommand string
	proxyTargetArgs    []string
	proxyHost          string
	proxyServer        string
	proxyRestore       bool
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the stdio proxy supervisor against an upstream MCP server",
	Long: `proxy transparently forwards newline-delimited JSON-RPC messages between
the MCP host (stdin/stdout) and an upstream MCP server spawned as a
subprocess, capturing every message for later flow reconstruction and
cognitive-load scoring.

Example:
  mcpaudit proxy --target-command npx --target-args @modelcontextprotocol/server-filesystem /tmp`,
	RunE: runProxy,
}

func init() {
	proxyCmd.Flags().StringVar(&proxyTargetCommand, "target-command", "", "upstream MCP server executable to spawn")
	proxyCmd.Flags().StringSliceVar(&proxyTargetArgs, "target-args", nil, "arguments passed to --target-command")
	proxyCmd.Flags().StringVar(&proxyHost, "host", "", "host name label attached to captured records")
	proxyCmd.Flags().StringVar(&proxyServer, "server", "", "server name label for the proxied upstream")
	proxyCmd.Flags().BoolVar(&proxyRestore, "restore", false, "restore the host's MCP config from its most recent backup and exit (alias for 'mcpaudit configure --restore')")
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	exitCode, err := runProxyInternal(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if exitCode != exitOK {
		os.Exit(exitCode)
	}
	return nil
}

func runProxyInternal(args []string) (exitCode int, retErr error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return exitConfigIOError, fmt.Errorf("load config: %w", err)
	}
	if proxyHost != "" {
		cfg.Proxy.Host = proxyHost
	}
	if proxyServer != "" {
		cfg.Proxy.Server = proxyServer
	}
	if proxyTargetCommand != "" {
		cfg.Proxy.TargetCommand = proxyTargetCommand
		cfg.Proxy.TargetArgs = proxyTargetArgs
	} else if len(args) > 0 {
		cfg.Proxy.TargetCommand = args[0]
		cfg.Proxy.TargetArgs = args[1:]
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return exitInvalidArgs, fmt.Errorf("config validation failed: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if proxyRestore {
		return runRestore(cfg, logger)
	}

	if cfg.Proxy.TargetCommand == "" {
		return exitInvalidArgs, errors.New("no upstream command specified; pass --target-command or arguments after --")
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	fileStore, err := store.NewFileStore(cfg.Store.OutputDir, cfg.Store.MessagesFile, cfg.Store.DecisionsFile, logger)
	if err != nil {
		return exitCaptureDisk, fmt.Errorf("open capture store: %w", err)
	}
	defer func() {
		if err := fileStore.Close(); err != nil {
			logger.Warn("error closing capture store", "error", err)
		}
	}()

	pidPath := pidFilePath(cfg.Store.OutputDir)
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("could not write pid file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(collectors.NewGoCollector())
	sharedMetrics := metricsadapter.NewMetrics(metricsReg)

	captureQueue := proxy.NewCaptureQueue(fileStore, cfg.Proxy.CaptureQueueSoftCap, sharedMetrics.CapturesDropped, logger)
	defer captureQueue.Close()

	correlation := message.NewCorrelationTable(correlationTTL(cfg), cfg.Proxy.CorrelationMaxEntries)
	interceptor := proxy.NewCaptureInterceptor(captureQueue, correlation, cfg.Proxy.Host, cfg.Proxy.Server)

	tracer, err := obs.NewTracer(ctx, toTracingConfig(cfg.Tracing))
	if err != nil {
		logger.Warn("tracer did not start; proceeding untraced", "error", err)
		tracer, _ = obs.NewTracer(ctx, obs.DefaultConfig())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", "error", err)
		}
	}()

	supervisor := upstream.NewStdioSupervisor(cfg.Proxy.TargetCommand, cfg.Proxy.TargetArgs...)
	proxySvc := service.NewProxyService(supervisor, interceptor, logger, service.WithTracer(tracer))

	if cfg.Metrics.Enabled {
		stopMetrics, err := startMetricsExporter(ctx, cfg, logger, metricsReg, sharedMetrics)
		if err != nil {
			logger.Warn("metrics exporter did not start", "error", err)
		} else if stopMetrics != nil {
			defer stopMetrics()
		}
	}

	logger.Info("proxy starting",
		"host", cfg.Proxy.Host, "server", cfg.Proxy.Server,
		"target_command", cfg.Proxy.TargetCommand, "target_args", cfg.Proxy.TargetArgs,
	)

	childPIDPath := childPIDFilePath(cfg.Store.OutputDir)
	go watchChildPID(ctx, supervisor, childPIDPath)
	defer os.Remove(childPIDPath)

	if err := proxySvc.Run(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("proxy stopped by signal")
			return exitOK, nil
		}
		return exitChildSpawnFail, fmt.Errorf("proxy run: %w", err)
	}

	return exitOK, nil
}

func runRestore(cfg *config.Config, logger *slog.Logger) (int, error) {
	if cfg.HostConfig.Path == "" {
		return exitInvalidArgs, errors.New("host_config.path is not set; nothing to restore")
	}
	rewriter := hostconfig.NewRewriter(cfg.HostConfig.ProxyExecutable)
	if err := rewriter.Restore(cfg.HostConfig.Path); err != nil {
		return exitConfigIOError, fmt.Errorf("restore host config: %w", err)
	}
	logger.Info("host config restored", "path", cfg.HostConfig.Path)
	return exitOK, nil
}

// startMetricsExporter launches the pull-metrics HTTP exporter (and any
// configured push sinks) in a background goroutine, returning a function
// that blocks until it has shut down.
func startMetricsExporter(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry, m *metricsadapter.Metrics) (func(), error) {
	reader := store.NewReader(cfg.Store.OutputDir, cfg.Store.MessagesFile, cfg.Store.DecisionsFile)
	reconstructor := flow.NewReconstructor(cfg.Proxy.WindowSeconds)
	scorer := scoring.NewScorer(toScoringWeights(cfg.Scoring.Weights))

	var sinks []outbound.MetricsSink
	if cfg.Metrics.Webhook.Enabled && cfg.Metrics.Webhook.URL != "" {
		sinks = append(sinks, pushsink.NewWebhookSink(cfg.Metrics.Webhook.URL, logger))
	}
	if cfg.Metrics.OTLP.Enabled && cfg.Metrics.OTLP.Endpoint != "" {
		otlpSink, err := pushsink.NewOTLPSink(ctx, cfg.Metrics.OTLP.Endpoint)
		if err != nil {
			logger.Warn("otlp metrics sink disabled", "error", err)
		} else {
			sinks = append(sinks, otlpSink)
		}
	}

	exporter := metricsadapter.NewExporter(
		cfg.Metrics.HTTPAddr,
		exportInterval(cfg),
		reader, reconstructor, scorer,
		metricsadapter.WithWebSocket(),
		metricsadapter.WithSinks(sinks...),
		metricsadapter.WithLogger(logger),
		metricsadapter.WithMetrics(reg, m),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := exporter.Start(ctx); err != nil {
			logger.Warn("metrics exporter stopped", "error", err)
		}
	}()

	return func() { <-done }, nil
}

func toTracingConfig(t config.TracingConfig) obs.Config {
	return obs.Config{
		Enabled:      t.Enabled,
		ServiceName:  "mcpaudit",
		ExporterType: obs.ExporterType(t.ExporterType),
		OTLPEndpoint: t.OTLPEndpoint,
		SampleRate:   t.SampleRate,
	}
}

func toScoringWeights(w config.WeightsConfig) scoring.Weights {
	return scoring.Weights{
		PromptComplexity:      w.PromptComplexity,
		ContextSwitching:      w.ContextSwitching,
		RetryFrustration:      w.RetryFrustration,
		ConfigurationFriction: w.ConfigurationFriction,
		IntegrationCognition:  w.IntegrationCognition,
	}
}

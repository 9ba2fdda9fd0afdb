package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/store"
	"github.com/cogtrace/mcpaudit/internal/domain/flow"
	"github.com/cogtrace/mcpaudit/internal/domain/scoring"
	"github.com/cogtrace/mcpaudit/internal/port/outbound"
)

// Exporter is the inbound pull-metrics adapter. It recomputes the sliding-
// window aggregate at most once per export interval and serves it as
// Prometheus gauges on /metrics, optionally broadcasting the same
// snapshot on /live/ws and pushing it to configured sinks.
type Exporter struct {
	addr           string
	exportInterval time.Duration
	reader         *store.Reader
	reconstructor  *flow.Reconstructor
	scorer         *scoring.Scorer
	sinks          []outbound.MetricsSink
	enableWS       bool

	reg    *prometheus.Registry
	m      *Metrics
	logger *slog.Logger
	server *http.Server
	hub    *wsHub
	clock  func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithWebSocket enables the /live/ws broadcast endpoint.
func WithWebSocket() Option {
	return func(e *Exporter) { e.enableWS = true }
}

// WithMetrics supplies a pre-built registry and Metrics for Start to serve,
// instead of constructing its own. This lets a caller share one registry
// (and its instruments, such as the capture-drop counter) between the proxy
// process's capture path and the /metrics endpoint.
func WithMetrics(reg *prometheus.Registry, m *Metrics) Option {
	return func(e *Exporter) {
		e.reg = reg
		e.m = m
	}
}

// WithSinks registers push sinks that receive every recomputed snapshot.
func WithSinks(sinks ...outbound.MetricsSink) Option {
	return func(e *Exporter) { e.sinks = append(e.sinks, sinks...) }
}

// WithLogger sets the exporter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// NewExporter builds an Exporter listening on addr, recomputing its
// aggregate every exportInterval.
func NewExporter(addr string, exportInterval time.Duration, reader *store.Reader, reconstructor *flow.Reconstructor, scorer *scoring.Scorer, opts ...Option) *Exporter {
	e := &Exporter{
		addr:           addr,
		exportInterval: exportInterval,
		reader:         reader,
		reconstructor:  reconstructor,
		scorer:         scorer,
		logger:         slog.Default(),
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start registers the Prometheus instruments, begins the recompute loop,
// and serves /metrics (and optionally /live/ws) until ctx is cancelled.
func (e *Exporter) Start(ctx context.Context) error {
	reg := e.reg
	m := e.m
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		m = NewMetrics(reg)
	}

	if e.enableWS {
		e.hub = newWSHub(e.logger)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if e.hub != nil {
		mux.HandleFunc("/live/ws", e.hub.handler())
	}

	e.server = &http.Server{Addr: e.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("starting metrics server", "addr", e.addr)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	go e.runRecomputeLoop(ctx, m)

	select {
	case <-ctx.Done():
		e.logger.Info("context cancelled, shutting down metrics server")
		return e.shutdown()
	case err := <-errCh:
		return err
	}
}

func (e *Exporter) runRecomputeLoop(ctx context.Context, m *Metrics) {
	ticker := time.NewTicker(e.exportInterval)
	defer ticker.Stop()

	e.recompute(ctx, m)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.recompute(ctx, m)
		}
	}
}

func (e *Exporter) recompute(ctx context.Context, m *Metrics) {
	records, err := e.reader.ReadMessages(ctx, store.Filter{})
	if err != nil {
		e.logger.Warn("metrics recompute: read messages failed", "error", err)
		return
	}
	decisions, err := e.reader.ReadDecisions(ctx)
	if err != nil {
		e.logger.Warn("metrics recompute: read decisions failed", "error", err)
		decisions = nil
	}

	flows := e.reconstructor.Reconstruct(records, decisions)
	snapshot := buildSnapshot(flows, e.scorer, e.clock().Unix())

	m.Apply(snapshot)
	if e.hub != nil {
		e.hub.broadcast(snapshot)
	}
	for _, sink := range e.sinks {
		if err := sink.Push(ctx, snapshot.toPort()); err != nil {
			e.logger.Warn("metrics recompute: push sink failed", "error", err)
		}
	}
}

func (e *Exporter) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.server.Shutdown(ctx)
}

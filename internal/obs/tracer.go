// Package obs wires the OpenTelemetry tracer and meter providers used for
// ambient observability of the proxy (span per forwarded MCP message),
// separate from the cognitive-load metrics pipeline in
// internal/adapter/outbound/pushsink and internal/adapter/inbound/metrics.
package obs

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ExporterType selects the trace exporter wired into the TracerProvider.
type ExporterType string

const (
	// ExporterNone disables tracing; StartMessageSpan calls become no-ops.
	ExporterNone ExporterType = "none"
	// ExporterStdout writes spans to stdout, for local debugging.
	ExporterStdout ExporterType = "stdout"
	// ExporterOTLPHTTP exports spans via OTLP over HTTP.
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// Config controls tracer construction.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType
	OTLPEndpoint   string
	SampleRate     float64
}

// DefaultConfig returns tracing disabled, which is the default for a CLI
// tool that writes its own capture files and doesn't assume a collector
// is running.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ServiceName:  "mcpaudit",
		ExporterType: ExporterNone,
		SampleRate:   1.0,
	}
}

// Tracer wraps a trace.Tracer with mcpaudit-specific span helpers for the
// proxy's message-forwarding path.
type Tracer struct {
	mu       sync.RWMutex
	cfg      Config
	provider trace.TracerProvider
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// NewTracer builds a Tracer from cfg. A disabled or ExporterNone config
// returns a Tracer backed by the no-op provider.
func NewTracer(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		return noopTracer(cfg), nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Tracer{
		cfg:      cfg,
		provider: tp,
		tracer:   tp.Tracer(cfg.ServiceName),
		shutdown: tp.Shutdown,
	}, nil
}

func noopTracer(cfg Config) *Tracer {
	tp := noop.NewTracerProvider()
	return &Tracer{
		cfg:      cfg,
		provider: tp,
		tracer:   tp.Tracer(cfg.ServiceName),
		shutdown: func(context.Context) error { return nil },
	}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter type: %s", cfg.ExporterType)
	}
}

// Enabled reports whether this Tracer emits real spans.
func (t *Tracer) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.Enabled && t.cfg.ExporterType != ExporterNone
}

// MessageSpanOptions describes one forwarded MCP message, the unit the
// proxy traces.
type MessageSpanOptions struct {
	Server    string
	Method    string
	Direction string
	FlowID    string
}

// StartMessageSpan starts a span covering a single forwarded MCP message.
func (t *Tracer) StartMessageSpan(ctx context.Context, opts MessageSpanOptions) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("mcpaudit.server", opts.Server),
		attribute.String("mcpaudit.direction", opts.Direction),
	}
	if opts.Method != "" {
		attrs = append(attrs, attribute.String("mcpaudit.method", opts.Method))
	}
	if opts.FlowID != "" {
		attrs = append(attrs, attribute.String("mcpaudit.flow_id", opts.FlowID))
	}

	name := "mcp.message"
	if opts.Method != "" {
		name = fmt.Sprintf("mcp.message/%s", opts.Method)
	}

	return t.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordError attaches err to span as an error event, a no-op if either is
// nil. It does not change the span's status.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
}

// TracerProvider returns the underlying provider, for wiring into SDK
// clients that accept one directly (e.g. an MCP client's instrumentation
// hook).
func (t *Tracer) TracerProvider() trace.TracerProvider {
	return t.provider
}

// Shutdown flushes and releases the tracer's exporter resources.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown != nil {
		return t.shutdown(ctx)
	}
	return nil
}

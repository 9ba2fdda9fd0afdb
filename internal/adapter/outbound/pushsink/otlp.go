package pushsink

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/cogtrace/mcpaudit/internal/port/outbound"
)

// OTLPSink exports MetricsSnapshot values as OTel metrics via an OTLP/HTTP
// periodic reader. Push only updates the latest snapshot under a mutex;
// the reader's own ticker drives the actual network export on its own
// schedule, the same observable-gauge-plus-callback shape the teacher uses
// for its current-stage gauge.
type OTLPSink struct {
	meterProvider *sdkmetric.MeterProvider

	mu     sync.Mutex
	latest outbound.MetricsSnapshot
}

// NewOTLPSink builds an OTLPSink exporting to endpoint.
func NewOTLPSink(ctx context.Context, endpoint string) (*OTLPSink, error) {
	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("pushsink: build otlp exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	meter := mp.Meter("mcpaudit")

	sink := &OTLPSink{meterProvider: mp}

	flowsGauge, err := meter.Int64ObservableGauge("mcpaudit.flows_total", metric.WithDescription("Flows reconstructed in the current window"))
	if err != nil {
		return nil, fmt.Errorf("pushsink: register flows gauge: %w", err)
	}
	successRateGauge, err := meter.Float64ObservableGauge("mcpaudit.success_rate", metric.WithDescription("Fraction of flows with no tool-call error"))
	if err != nil {
		return nil, fmt.Errorf("pushsink: register success rate gauge: %w", err)
	}
	compositeGauge, err := meter.Float64ObservableGauge("mcpaudit.cognitive_load.composite", metric.WithDescription("Mean composite cognitive load"))
	if err != nil {
		return nil, fmt.Errorf("pushsink: register composite gauge: %w", err)
	}
	factorGauge, err := meter.Float64ObservableGauge("mcpaudit.cognitive_load", metric.WithDescription("Mean cognitive load by factor"))
	if err != nil {
		return nil, fmt.Errorf("pushsink: register factor gauge: %w", err)
	}
	gradeGauge, err := meter.Int64ObservableGauge("mcpaudit.grade_distribution", metric.WithDescription("Flow count by letter grade"))
	if err != nil {
		return nil, fmt.Errorf("pushsink: register grade gauge: %w", err)
	}
	toolGauge, err := meter.Int64ObservableGauge("mcpaudit.tool_calls_total", metric.WithDescription("Tool call count by tool name"))
	if err != nil {
		return nil, fmt.Errorf("pushsink: register tool calls gauge: %w", err)
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			sink.mu.Lock()
			snapshot := sink.latest
			sink.mu.Unlock()

			o.ObserveInt64(flowsGauge, int64(snapshot.FlowsTotal))
			o.ObserveFloat64(successRateGauge, snapshot.SuccessRate)
			if composite, ok := snapshot.CognitiveLoad["composite"]; ok {
				o.ObserveFloat64(compositeGauge, composite)
			}
			for factor, value := range snapshot.CognitiveLoad {
				if factor == "composite" {
					continue
				}
				o.ObserveFloat64(factorGauge, value, metric.WithAttributes(attribute.String("factor", factor)))
			}
			for grade, count := range snapshot.GradeDistribution {
				o.ObserveInt64(gradeGauge, int64(count), metric.WithAttributes(attribute.String("grade", grade)))
			}
			for tool, count := range snapshot.ToolCallsTotal {
				o.ObserveInt64(toolGauge, int64(count), metric.WithAttributes(attribute.String("tool", tool)))
			}
			return nil
		},
		flowsGauge, successRateGauge, compositeGauge, factorGauge, gradeGauge, toolGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("pushsink: register callback: %w", err)
	}

	return sink, nil
}

// Push records snapshot as the latest value the registered callbacks will
// report on the reader's next collection tick.
func (s *OTLPSink) Push(ctx context.Context, snapshot outbound.MetricsSnapshot) error {
	s.mu.Lock()
	s.latest = snapshot
	s.mu.Unlock()
	return nil
}

// Shutdown flushes and releases the underlying meter provider.
func (s *OTLPSink) Shutdown(ctx context.Context) error {
	return s.meterProvider.Shutdown(ctx)
}

var _ outbound.MetricsSink = (*OTLPSink)(nil)

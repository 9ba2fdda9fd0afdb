package pushsink

import (
	"context"
	"testing"

	"github.com/cogtrace/mcpaudit/internal/port/outbound"
)

func TestNewOTLPSink_PushAndShutdownDoNotError(t *testing.T) {
	t.Parallel()

	sink, err := NewOTLPSink(context.Background(), "127.0.0.1:4318")
	if err != nil {
		t.Fatalf("NewOTLPSink() error: %v", err)
	}

	snapshot := outbound.MetricsSnapshot{
		FlowsTotal:        2,
		GradeDistribution: map[string]int{"A": 1, "B": 1},
		CognitiveLoad:     map[string]float64{"composite": 15.5, "retry_frustration": 10},
		ToolCallsTotal:    map[string]int{"list_files": 2},
	}
	if err := sink.Push(context.Background(), snapshot); err != nil {
		t.Errorf("Push() error: %v", err)
	}

	if err := sink.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}

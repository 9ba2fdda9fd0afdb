package pushsink

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cogtrace/mcpaudit/internal/port/outbound"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestWebhookSink_DeliversSnapshot(t *testing.T) {
	t.Parallel()

	received := make(chan outbound.MetricsSnapshot, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var snapshot outbound.MetricsSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		received <- snapshot
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, testLogger())
	defer sink.Stop()

	want := outbound.MetricsSnapshot{FlowsTotal: 3}
	if err := sink.Push(context.Background(), want); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	select {
	case got := <-received:
		if got.FlowsTotal != want.FlowsTotal {
			t.Errorf("FlowsTotal = %d, want %d", got.FlowsTotal, want.FlowsTotal)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}
}

func TestWebhookSink_RetriesOnFailureThenSucceeds(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, testLogger())
	defer sink.Stop()

	if err := sink.Push(context.Background(), outbound.MetricsSnapshot{}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if atomic.LoadInt32(&attempts) >= 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 attempts, got %d", atomic.LoadInt32(&attempts))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWebhookSink_QueueFullDropsRatherThanBlocks(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(block)

	sink := NewWebhookSink(server.URL, testLogger())
	defer sink.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueCapacity*4; i++ {
			_ = sink.Push(context.Background(), outbound.MetricsSnapshot{FlowsTotal: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push calls blocked instead of dropping under a full queue")
	}
}

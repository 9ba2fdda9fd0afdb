package proxy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/pkg/mcp"
)

// fakeCapturer records every call for assertion, optionally failing N times.
type fakeCapturer struct {
	mu      sync.Mutex
	records []message.RawMessageRecord
	failN   int
}

func (f *fakeCapturer) Capture(_ context.Context, rec message.RawMessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("disk full")
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeCapturer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeCapturer) recordAt(i int) message.RawMessageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[i]
}

type fakeCounter struct {
	mu sync.Mutex
	n  int
}

func (c *fakeCounter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *fakeCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// waitFor polls cond every few milliseconds until it returns true or the
// deadline elapses, matching the async-delivery test idiom used for the
// push sinks.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return
		}
		select {
		case <-ticker.C:
		case <-deadline:
			t.Fatal("condition not met before deadline")
		}
	}
}

func TestCaptureInterceptor_RecordsCapturedMessage(t *testing.T) {
	t.Parallel()

	cap := &fakeCapturer{}
	queue := NewCaptureQueue(cap, 0, nil, nil)
	defer queue.Close()
	table := message.NewCorrelationTable(time.Minute, 100)
	interceptor := NewCaptureInterceptor(queue, table, "cursor", "fs-server")

	msg := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"read_file"}}`), mcp.HostToServer)
	interceptor.Observe(context.Background(), msg)

	waitFor(t, time.Second, func() bool { return cap.count() == 1 })
}

func TestCaptureInterceptor_SkipsUncapturedLine(t *testing.T) {
	t.Parallel()

	cap := &fakeCapturer{}
	queue := NewCaptureQueue(cap, 0, nil, nil)
	defer queue.Close()
	table := message.NewCorrelationTable(time.Minute, 100)
	interceptor := NewCaptureInterceptor(queue, table, "cursor", "fs-server")

	msg := mcp.WrapMessage([]byte(`not json-rpc at all`), mcp.ServerToHost)
	interceptor.Observe(context.Background(), msg)

	// Give the (empty) queue a chance to drain before asserting nothing landed.
	time.Sleep(20 * time.Millisecond)
	if cap.count() != 0 {
		t.Fatalf("uncaptured lines should not reach the capturer, got %d records", cap.count())
	}
}

func TestCaptureInterceptor_ComputesLatencyOnMatchingResponse(t *testing.T) {
	t.Parallel()

	cap := &fakeCapturer{}
	queue := NewCaptureQueue(cap, 0, nil, nil)
	defer queue.Close()
	table := message.NewCorrelationTable(time.Minute, 100)
	interceptor := NewCaptureInterceptor(queue, table, "cursor", "fs-server")

	req := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"x"}}`), mcp.HostToServer)
	req.Timestamp = time.Now()
	interceptor.Observe(context.Background(), req)

	resp := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":7,"result":{}}`), mcp.ServerToHost)
	resp.Timestamp = req.Timestamp.Add(50 * time.Millisecond)
	interceptor.Observe(context.Background(), resp)

	waitFor(t, time.Second, func() bool { return cap.count() == 2 })
	respRecord := cap.recordAt(1)
	if respRecord.LatencyMs == nil || *respRecord.LatencyMs != 50 {
		t.Errorf("LatencyMs = %v, want 50", respRecord.LatencyMs)
	}
}

func TestCaptureInterceptor_OrphanResponseHasNilLatency(t *testing.T) {
	t.Parallel()

	cap := &fakeCapturer{}
	queue := NewCaptureQueue(cap, 0, nil, nil)
	defer queue.Close()
	table := message.NewCorrelationTable(time.Minute, 100)
	interceptor := NewCaptureInterceptor(queue, table, "cursor", "fs-server")

	resp := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":404,"result":{}}`), mcp.ServerToHost)
	interceptor.Observe(context.Background(), resp)

	waitFor(t, time.Second, func() bool { return cap.count() == 1 })
	if cap.recordAt(0).LatencyMs != nil {
		t.Error("orphan response should have nil LatencyMs")
	}
}

func TestCaptureInterceptor_DropIncrementsCounterAndDoesNotPanic(t *testing.T) {
	t.Parallel()

	cap := &fakeCapturer{failN: 1}
	counter := &fakeCounter{}
	queue := NewCaptureQueue(cap, 0, counter, nil)
	defer queue.Close()
	table := message.NewCorrelationTable(time.Minute, 100)
	interceptor := NewCaptureInterceptor(queue, table, "cursor", "fs-server")

	msg := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`), mcp.HostToServer)
	interceptor.Observe(context.Background(), msg)

	waitFor(t, time.Second, func() bool { return counter.get() == 1 })
	if cap.count() != 0 {
		t.Error("failed capture should not be recorded")
	}
}

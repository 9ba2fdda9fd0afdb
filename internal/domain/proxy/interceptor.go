// Package proxy contains the core domain logic for the MCP proxy: the
// capture path that observes every message flowing through the stdio pipe
// without ever blocking or altering forwarding.
package proxy

import (
	"context"

	"github.com/google/uuid"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/pkg/mcp"
)

// Capturer persists a Raw Message Record. Implementations (the file-backed
// message store) may fail on transient I/O; a capture failure must never
// propagate back into the forwarding path.
type Capturer interface {
	Capture(ctx context.Context, rec message.RawMessageRecord) error
}

// DropCounter is incremented once per best-effort capture failure, backing
// the mcpaudit_captures_dropped_total metric.
type DropCounter interface {
	Inc()
}

// noopDropCounter discards increments when no counter is wired in.
type noopDropCounter struct{}

func (noopDropCounter) Inc() {}

// CaptureInterceptor observes every message crossing the stdio pipe and
// enqueues a Raw Message Record onto a CaptureQueue for asynchronous
// persistence. It never rejects, blocks, or rewrites a message -- there is
// no allow/deny decision here, matching the Non-goal that the core does not
// modify or inject messages.
type CaptureInterceptor struct {
	queue        *CaptureQueue
	correlation  *message.CorrelationTable
	host, server string
}

// NewCaptureInterceptor builds a capture interceptor for one proxied
// server. queue owns the capture-writer goroutine and the drop-oldest
// backpressure policy; Observe only ever enqueues.
func NewCaptureInterceptor(queue *CaptureQueue, correlation *message.CorrelationTable, host, server string) *CaptureInterceptor {
	return &CaptureInterceptor{
		queue:       queue,
		correlation: correlation,
		host:        host,
		server:      server,
	}
}

// Server returns the server name label this interceptor attaches to
// captured records.
func (i *CaptureInterceptor) Server() string {
	return i.server
}

// Observe records msg as a Raw Message Record, computing latency_ms for
// responses that match a previously-observed request, then hands the
// record to the capture queue and returns immediately. The forwarding path
// never waits on a disk write.
func (i *CaptureInterceptor) Observe(ctx context.Context, msg *mcp.Message) {
	if !msg.Captured {
		return
	}

	var latencyMs *int64
	id := msg.RawID()

	switch {
	case msg.IsRequest():
		if len(id) > 0 {
			i.correlation.Observe(message.Key(i.server, id), msg.Timestamp)
		}
	case msg.IsResponse():
		if len(id) > 0 {
			if latency, ok := i.correlation.Resolve(message.Key(i.server, id), msg.Timestamp); ok {
				ms := latency.Milliseconds()
				latencyMs = &ms
			}
		}
	}

	rec := message.NewRecordFromMessage(uuid.NewString(), msg, i.host, i.server, latencyMs)

	i.queue.Enqueue(rec)
}

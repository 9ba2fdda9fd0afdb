package proxy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
)

// DefaultSoftCap is the capture queue's default capacity before it starts
// evicting the oldest buffered record to make room for new ones.
const DefaultSoftCap = 10000

// drainDeadline bounds how long Close waits for the writer goroutine to
// drain a backlog before giving up and returning anyway.
const drainDeadline = 2 * time.Second

// CaptureQueue buffers Raw Message Records in memory and drains them to a
// Capturer on a single dedicated goroutine, so a slow disk never blocks the
// forwarding hot path -- the same never-block-the-caller shape the push
// sinks use for metrics delivery. Unlike a push sink, which drops the
// newest snapshot under backpressure, a capture queue drops the oldest
// buffered record on overflow: recent activity is more useful to an
// operator investigating a stall than a record captured minutes earlier.
type CaptureQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []message.RawMessageRecord
	softCap int

	capturer Capturer
	drops    DropCounter
	logger   *slog.Logger

	closed bool
	done   chan struct{}
}

// NewCaptureQueue starts a CaptureQueue that drains to capturer on its own
// goroutine. softCap <= 0 uses DefaultSoftCap. drops may be nil, in which
// case dropped records are only logged.
func NewCaptureQueue(capturer Capturer, softCap int, drops DropCounter, logger *slog.Logger) *CaptureQueue {
	if softCap <= 0 {
		softCap = DefaultSoftCap
	}
	if drops == nil {
		drops = noopDropCounter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &CaptureQueue{
		softCap:  softCap,
		capturer: capturer,
		drops:    drops,
		logger:   logger,
		done:     make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Enqueue adds rec to the queue without blocking the caller. If the queue
// is already at softCap, the oldest buffered record is dropped to make
// room and the drop counter is incremented.
func (q *CaptureQueue) Enqueue(rec message.RawMessageRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if len(q.buf) >= q.softCap {
		q.buf = q.buf[1:]
		q.drops.Inc()
		q.logger.Warn("capture queue at soft cap, dropped oldest record", "soft_cap", q.softCap)
	}
	q.buf = append(q.buf, rec)
	q.cond.Signal()
}

// run drains the queue one record at a time until Close is called and the
// backlog is empty. A Capture error counts as a drop: the record never
// reached the store.
func (q *CaptureQueue) run() {
	defer close(q.done)
	ctx := context.Background()
	for {
		rec, ok := q.next()
		if !ok {
			return
		}
		if err := q.capturer.Capture(ctx, rec); err != nil {
			q.drops.Inc()
			q.logger.Warn("dropped capture record", "error", err)
		}
	}
}

func (q *CaptureQueue) next() (message.RawMessageRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 {
		if q.closed {
			return message.RawMessageRecord{}, false
		}
		q.cond.Wait()
	}
	rec := q.buf[0]
	q.buf = q.buf[1:]
	return rec, true
}

// Close stops accepting new records and wakes the writer goroutine to
// drain any backlog, waiting up to a 2s deadline before giving up and
// returning -- cancellation must not hang shutdown on a slow disk.
func (q *CaptureQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-time.After(drainDeadline):
		q.logger.Warn("capture queue did not drain within deadline, abandoning backlog", "deadline", drainDeadline)
	}
}

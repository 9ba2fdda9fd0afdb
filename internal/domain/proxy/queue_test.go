package proxy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
)

// blockingCapturer blocks every Capture call until release is closed, so
// tests can pile records up behind a stalled writer goroutine.
type blockingCapturer struct {
	release chan struct{}
	mu      sync.Mutex
	got     []message.RawMessageRecord
}

func newBlockingCapturer() *blockingCapturer {
	return &blockingCapturer{release: make(chan struct{})}
}

func (b *blockingCapturer) Capture(ctx context.Context, rec message.RawMessageRecord) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, rec)
	return nil
}

func (b *blockingCapturer) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func recordWithID(id string) message.RawMessageRecord {
	return message.RawMessageRecord{ID: id}
}

func TestCaptureQueue_DropsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	cap := newBlockingCapturer()
	counter := &fakeCounter{}
	queue := NewCaptureQueue(cap, 2, counter, nil)
	defer close(cap.release)
	defer queue.Close()

	// The first enqueue is immediately picked up by the writer goroutine and
	// blocks it, so every record after that sits in the buffer.
	queue.Enqueue(recordWithID("in-flight"))
	time.Sleep(20 * time.Millisecond)

	queue.Enqueue(recordWithID("a"))
	queue.Enqueue(recordWithID("b"))
	// Buffer is now at its soft cap of 2; this should evict "a".
	queue.Enqueue(recordWithID("c"))

	queue.mu.Lock()
	ids := make([]string, len(queue.buf))
	for i, rec := range queue.buf {
		ids[i] = rec.ID
	}
	queue.mu.Unlock()

	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("buffer = %v, want [b c]", ids)
	}
	if counter.get() != 1 {
		t.Fatalf("drop counter = %d, want 1", counter.get())
	}
}

func TestCaptureQueue_CloseDrainsBacklog(t *testing.T) {
	t.Parallel()

	cap := &fakeCapturer{}
	queue := NewCaptureQueue(cap, 0, nil, nil)

	for i := 0; i < 5; i++ {
		queue.Enqueue(recordWithID("r"))
	}
	queue.Close()

	if cap.count() != 5 {
		t.Fatalf("records captured after Close = %d, want 5", cap.count())
	}
}

func TestCaptureQueue_CloseGivesUpAfterDeadlineOnStalledWriter(t *testing.T) {
	t.Parallel()

	cap := newBlockingCapturer()
	queue := NewCaptureQueue(cap, 0, nil, nil)
	queue.Enqueue(recordWithID("stuck"))

	start := time.Now()
	queue.Close()
	elapsed := time.Since(start)

	if elapsed < drainDeadline {
		t.Fatalf("Close returned after %v, want >= %v", elapsed, drainDeadline)
	}
	if elapsed > drainDeadline+time.Second {
		t.Fatalf("Close took %v, want close to %v", elapsed, drainDeadline)
	}
	close(cap.release)
}

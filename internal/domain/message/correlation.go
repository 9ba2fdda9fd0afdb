package message

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// pendingRequest tracks a request awaiting its matching response.
type pendingRequest struct {
	sentAt time.Time
}

// CorrelationTable keys in-flight requests by a hash of (server, payload id)
// so a matching response can compute latency_ms. It is a mutex-guarded map
// with a ticker-driven cleanup goroutine, bounded by both a TTL and a
// maximum entry count with oldest-first eviction once the cap is hit.
type CorrelationTable struct {
	mu          sync.Mutex
	pending     map[uint64]pendingRequest
	order       []uint64 // insertion order, for oldest-first eviction
	ttl         time.Duration
	maxEntries  int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	once        sync.Once
	cleanupTick time.Duration
}

// NewCorrelationTable creates a correlation table with the given TTL and
// maximum size. The cleanup goroutine ticks every ttl/2, or every minute
// when ttl/2 is not positive.
func NewCorrelationTable(ttl time.Duration, maxEntries int) *CorrelationTable {
	tick := ttl / 2
	if tick <= 0 {
		tick = time.Minute
	}
	return &CorrelationTable{
		pending:     make(map[uint64]pendingRequest),
		ttl:         ttl,
		maxEntries:  maxEntries,
		stopChan:    make(chan struct{}),
		cleanupTick: tick,
	}
}

// Key hashes a composite (server, id) pair into a uint64 table key with
// xxhash, a zero byte separating the two parts.
func Key(server string, id []byte) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(server)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(id)
	return h.Sum64()
}

// Observe records that a request with the given key was sent at sentAt.
// If the table is at capacity, the oldest pending entry is evicted.
func (c *CorrelationTable) Observe(key uint64, sentAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[key]; !exists {
		c.order = append(c.order, key)
	}
	c.pending[key] = pendingRequest{sentAt: sentAt}

	for c.maxEntries > 0 && len(c.pending) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.pending, oldest)
	}
}

// Resolve looks up and removes the pending request for key, returning the
// latency since it was observed. ok is false for an orphan response (no
// matching request, or it already expired/evicted) — callers leave
// latency_ms null in that case per spec.
func (c *CorrelationTable) Resolve(key uint64, respondedAt time.Time) (latency time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, exists := c.pending[key]
	if !exists {
		return 0, false
	}
	delete(c.pending, key)
	return respondedAt.Sub(req.sentAt), true
}

// Size returns the current number of pending requests.
func (c *CorrelationTable) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// StartCleanup starts the background eviction goroutine. It stops when ctx
// is cancelled or Stop is called.
func (c *CorrelationTable) StartCleanup(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cleanupTick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.cleanup()
			}
		}
	}()
}

func (c *CorrelationTable) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.ttl)
	cleaned := 0
	remainingOrder := c.order[:0]
	for _, key := range c.order {
		req, exists := c.pending[key]
		if !exists {
			continue
		}
		if req.sentAt.Before(cutoff) {
			delete(c.pending, key)
			cleaned++
			continue
		}
		remainingOrder = append(remainingOrder, key)
	}
	c.order = remainingOrder

	if cleaned > 0 {
		slog.Debug("correlation table cleanup completed",
			"expired_entries", cleaned,
			"remaining_entries", len(c.pending))
	}
}

// Stop gracefully stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (c *CorrelationTable) Stop() {
	c.once.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

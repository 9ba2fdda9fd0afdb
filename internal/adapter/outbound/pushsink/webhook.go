// Package pushsink implements best-effort delivery of metrics snapshots to
// external systems. No sink's Push blocks the caller: WebhookSink queues
// snapshots on a bounded channel drained by a detached goroutine, shedding
// load under backpressure instead of queuing unboundedly, and OTLPSink only
// records the latest snapshot for the OTel periodic reader to export.
package pushsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cogtrace/mcpaudit/internal/port/outbound"
)

// queueCapacity bounds how many snapshots may wait for delivery; once it is
// reached, newly pushed snapshots are dropped and the queued ones are kept.
const queueCapacity = 8

// maxAttempts is how many times WebhookSink retries a failed POST before
// giving up on a snapshot.
const maxAttempts = 3

// baseBackoff is the first retry delay; it doubles on each subsequent
// attempt.
const baseBackoff = 250 * time.Millisecond

// WebhookSink POSTs each MetricsSnapshot as JSON to a configured URL, with
// bounded retries and exponential backoff.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *slog.Logger

	queue    chan outbound.MetricsSnapshot
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewWebhookSink builds a WebhookSink posting to url and starts its
// delivery goroutine. Stop must be called to release it.
func NewWebhookSink(url string, logger *slog.Logger) *WebhookSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &WebhookSink{
		url:      url,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		queue:    make(chan outbound.MetricsSnapshot, queueCapacity),
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Push enqueues snapshot for best-effort delivery. Never blocks: if the
// queue is full, the snapshot is dropped and logged.
func (s *WebhookSink) Push(ctx context.Context, snapshot outbound.MetricsSnapshot) error {
	select {
	case s.queue <- snapshot:
		return nil
	default:
		s.logger.Warn("webhook sink queue full, dropping snapshot", "url", s.url)
		return nil
	}
}

func (s *WebhookSink) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopChan:
			return
		case snapshot := <-s.queue:
			s.deliver(snapshot)
		}
	}
}

func (s *WebhookSink) deliver(snapshot outbound.MetricsSnapshot) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("webhook sink marshal failed", "error", err)
		return
	}

	backoff := baseBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if s.post(body) {
			return
		}
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	s.logger.Warn("webhook sink gave up after retries", "url", s.url, "attempts", maxAttempts)
}

func (s *WebhookSink) post(body []byte) bool {
	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("webhook sink build request failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook sink delivery failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook sink received error status", "status", resp.StatusCode)
		return false
	}
	return true
}

// Stop drains in-flight delivery and halts the background goroutine.
func (s *WebhookSink) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

var _ outbound.MetricsSink = (*WebhookSink)(nil)

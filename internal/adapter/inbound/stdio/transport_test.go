package stdio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/internal/domain/proxy"
	"github.com/cogtrace/mcpaudit/internal/port/inbound"
	"github.com/cogtrace/mcpaudit/internal/service"
	"go.uber.org/goleak"
)

// Compile-time interface compliance check (runtime assertion).
var _ inbound.ProxyService = (*StdioTransport)(nil)

// mockMCPClient implements outbound.MCPClient for testing.
type mockMCPClient struct {
	startFunc func(ctx context.Context) (io.WriteCloser, io.ReadCloser, error)
	closeFunc func() error
	waitFunc  func() error

	mu      sync.Mutex
	started bool
	closed  bool
}

func (m *mockMCPClient) Start(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	if m.startFunc != nil {
		return m.startFunc(ctx)
	}
	r, w := io.Pipe()
	return w, r, nil
}

func (m *mockMCPClient) Stderr() io.Reader { return nil }

func (m *mockMCPClient) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockMCPClient) Wait() error {
	if m.waitFunc != nil {
		return m.waitFunc()
	}
	return nil
}

func (m *mockMCPClient) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// recordingCapturer implements proxy.Capturer, recording every call.
type recordingCapturer struct {
	mu      sync.Mutex
	records []message.RawMessageRecord
}

func (c *recordingCapturer) Capture(_ context.Context, rec message.RawMessageRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *recordingCapturer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// newTestInterceptor builds a CaptureInterceptor backed by a CaptureQueue
// draining into cap, plus a cleanup func the caller must invoke (typically
// via defer) to stop the queue's writer goroutine before goleak checks run.
func newTestInterceptor(cap proxy.Capturer) (*proxy.CaptureInterceptor, func()) {
	table := message.NewCorrelationTable(time.Minute, 1000)
	queue := proxy.NewCaptureQueue(cap, 0, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	interceptor := proxy.NewCaptureInterceptor(queue, table, "test-host", "test-server")
	return interceptor, queue.Close
}

func TestNewStdioTransport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockClient := &mockMCPClient{}
	interceptor, closeQueue := newTestInterceptor(&recordingCapturer{})
	defer closeQueue()
	proxyService := service.NewProxyService(mockClient, interceptor, logger)

	transport := NewStdioTransport(proxyService)
	if transport == nil {
		t.Fatal("expected non-nil transport")
	}
	if transport.proxyService != proxyService {
		t.Error("expected proxyService to be set")
	}
}

func TestStdioTransport_Close(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockClient := &mockMCPClient{}
	interceptor, closeQueue := newTestInterceptor(&recordingCapturer{})
	defer closeQueue()
	proxyService := service.NewProxyService(mockClient, interceptor, logger)

	transport := NewStdioTransport(proxyService)
	if err := transport.Close(); err != nil {
		t.Errorf("expected Close() to return nil, got: %v", err)
	}
}

func TestStdioTransport_Start_ContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	serverInReader, serverInWriter := io.Pipe()
	serverOutReader, serverOutWriter := io.Pipe()

	wrappedServerIn := &writerWithCloseSignal{
		WriteCloser: serverInWriter,
		onClose: func() {
			_ = serverOutWriter.Close()
		},
	}

	mockClient := &mockMCPClient{
		startFunc: func(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
			return wrappedServerIn, serverOutReader, nil
		},
		closeFunc: func() error {
			_ = serverInWriter.Close()
			_ = serverOutReader.Close()
			_ = serverInReader.Close()
			_ = serverOutWriter.Close()
			return nil
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	interceptor, closeQueue := newTestInterceptor(&recordingCapturer{})
	defer closeQueue()
	proxyService := service.NewProxyService(mockClient, interceptor, logger)
	transport := NewStdioTransport(proxyService)

	origStdin, origStdout := os.Stdin, os.Stdout
	defer func() { os.Stdin, os.Stdout = origStdin, origStdout }()

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdin pipe: %v", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdin = stdinR
	os.Stdout = stdoutW

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	_ = stdinW.Close()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transport to stop after context cancellation")
	}

	if !mockClient.isClosed() {
		t.Error("expected mock client to be closed")
	}

	_ = stdinR.Close()
	_ = stdoutR.Close()
	_ = stdoutW.Close()
}

// writerWithCloseSignal wraps an io.WriteCloser and signals on close.
// Simulates how closing a process's stdin causes the process to exit.
type writerWithCloseSignal struct {
	io.WriteCloser
	onClose func()
	once    sync.Once
}

func (w *writerWithCloseSignal) Close() error {
	err := w.WriteCloser.Close()
	w.once.Do(func() {
		if w.onClose != nil {
			w.onClose()
		}
	})
	return err
}

func TestStdioTransport_Start_MessageRoutingAndCapture(t *testing.T) {
	defer goleak.VerifyNone(t)

	serverInReader, serverInWriter := io.Pipe()
	serverOutReader, serverOutWriter := io.Pipe()

	echoDone := make(chan struct{})
	go func() {
		defer close(echoDone)
		defer func() { _ = serverOutWriter.Close() }()
		buf := make([]byte, 4096)
		for {
			n, err := serverInReader.Read(buf)
			if err != nil {
				return
			}
			if _, err := serverOutWriter.Write(buf[:n]); err != nil {
				return
			}
		}
	}()

	mockClient := &mockMCPClient{
		startFunc: func(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
			return serverInWriter, serverOutReader, nil
		},
		closeFunc: func() error {
			_ = serverInWriter.Close()
			_ = serverInReader.Close()
			_ = serverOutReader.Close()
			_ = serverOutWriter.Close()
			return nil
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cap := &recordingCapturer{}
	interceptor, closeQueue := newTestInterceptor(cap)
	defer closeQueue()
	proxyService := service.NewProxyService(mockClient, interceptor, logger)
	transport := NewStdioTransport(proxyService)

	origStdin, origStdout := os.Stdin, os.Stdout
	defer func() { os.Stdin, os.Stdout = origStdin, origStdout }()

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdin pipe: %v", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdin = stdinR
	os.Stdout = stdoutW

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Start(ctx)
	}()

	testMsg := `{"jsonrpc":"2.0","method":"test/echo","id":1}` + "\n"
	if _, err := stdinW.Write([]byte(testMsg)); err != nil {
		t.Fatalf("write to stdin failed: %v", err)
	}

	responseCh := make(chan string, 1)
	go func() {
		buf := make([]byte, 0, 1024)
		tmp := make([]byte, 256)
		for {
			n, err := stdoutR.Read(tmp)
			if err != nil {
				responseCh <- string(buf)
				return
			}
			buf = append(buf, tmp[:n]...)
			if len(buf) > 0 && buf[len(buf)-1] == '\n' {
				responseCh <- string(buf)
				return
			}
		}
	}()

	select {
	case response := <-responseCh:
		if response != testMsg {
			t.Errorf("expected %q, got %q", testMsg, response)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for echoed response on stdout")
	}

	deadline := time.Now().Add(2 * time.Second)
	for cap.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if cap.count() < 1 {
		t.Error("expected the message to reach the capturer")
	}

	_ = stdinW.Close()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transport shutdown")
	}

	select {
	case <-echoDone:
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for echo server to exit")
	}

	if !mockClient.isClosed() {
		t.Error("expected mock client to be closed")
	}

	_ = stdinR.Close()
	_ = stdoutR.Close()
	_ = stdoutW.Close()
}

// Package service contains the core proxy service implementation.
package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cogtrace/mcpaudit/internal/ctxkey"
	"github.com/cogtrace/mcpaudit/internal/domain/proxy"
	"github.com/cogtrace/mcpaudit/internal/obs"
	"github.com/cogtrace/mcpaudit/internal/port/outbound"
	"github.com/cogtrace/mcpaudit/pkg/mcp"
)

// loggerFromContext retrieves the enriched logger from context, or nil when
// none is present (Run then falls back to the service's own logger).
func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return nil
}

// ProxyService transparently forwards newline-delimited JSON-RPC messages
// between a host (typically os.Stdin/os.Stdout) and an upstream MCP server,
// tee-ing every message to a CaptureInterceptor. Forwarding and capture are
// independent: a capture failure is logged by the capture queue and never
// affects what gets written to either side of the pipe.
type ProxyService struct {
	client       outbound.MCPClient
	interceptor  *proxy.CaptureInterceptor
	logger       *slog.Logger
	tracer       *obs.Tracer
	stderrMirror io.Writer
}

// Option configures optional ProxyService behavior.
type Option func(*ProxyService)

// WithTracer attaches a Tracer that emits one span per forwarded MCP
// message. Omit it (or pass a disabled Tracer) to trace nothing.
func WithTracer(tracer *obs.Tracer) Option {
	return func(p *ProxyService) { p.tracer = tracer }
}

// WithStderrMirror overrides where upstream stderr lines are mirrored to.
// Defaults to os.Stderr; tests use this to observe mirrored output.
func WithStderrMirror(w io.Writer) Option {
	return func(p *ProxyService) { p.stderrMirror = w }
}

// NewProxyService creates a proxy service wired to an upstream client and a
// capture interceptor.
func NewProxyService(client outbound.MCPClient, interceptor *proxy.CaptureInterceptor, logger *slog.Logger, opts ...Option) *ProxyService {
	p := &ProxyService{
		client:       client,
		interceptor:  interceptor,
		logger:       logger,
		stderrMirror: os.Stderr,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the bidirectional proxy between the host and the upstream
// server. It blocks until the context is cancelled, the upstream exits, or
// an unrecoverable I/O error occurs. hostIn is where host-to-server
// messages are read from (typically os.Stdin); hostOut is where
// server-to-host messages are written (typically os.Stdout).
func (p *ProxyService) Run(ctx context.Context, hostIn io.Reader, hostOut io.Writer) error {
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = p.logger
	}

	serverIn, serverOut, err := p.client.Start(ctx)
	if err != nil {
		return fmt.Errorf("start upstream server: %w", err)
	}
	defer func() { _ = p.client.Close() }()

	parentCtx := ctx
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	// host -> server
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { _ = serverIn.Close() }() // signal EOF to server when host disconnects
		if err := p.copyMessages(ctx, hostIn, serverIn, mcp.HostToServer, logger); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				errCh <- fmt.Errorf("host->server: %w", err)
			}
		}
		logger.Debug("host->server copy completed")
	}()

	// server -> host
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.copyMessages(ctx, serverOut, hostOut, mcp.ServerToHost, logger); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				errCh <- fmt.Errorf("server->host: %w", err)
			}
		}
		logger.Debug("server->host copy completed")
		cancel() // upstream closed its output, tear down the pair
	}()

	// server stderr -> this process's stderr, with any JSON-RPC-shaped line
	// also captured as a server_to_host record, for servers that mistakenly
	// route protocol traffic to stderr instead of stdout.
	if stderr := p.client.Stderr(); stderr != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.mirrorStderr(ctx, stderr, logger)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case err := <-errCh:
		cancel()
		<-done
		return err
	}

	if err := p.client.Wait(); err != nil {
		if parentCtx.Err() == nil {
			logger.Debug("upstream server exited", "error", err)
		}
	}

	// Only surface an error if the parent context (not our own internal
	// cancel) was the reason we stopped.
	return parentCtx.Err()
}

// startMessageSpan opens a span covering one forwarded message's capture
// and forward, or a no-op span when no tracer is wired.
func (p *ProxyService) startMessageSpan(ctx context.Context, msg *mcp.Message, direction mcp.Direction) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	server := ""
	if p.interceptor != nil {
		server = p.interceptor.Server()
	}
	return p.tracer.StartMessageSpan(ctx, obs.MessageSpanOptions{
		Server:    server,
		Method:    msg.Method(),
		Direction: direction.String(),
	})
}

// copyMessages reads newline-delimited JSON-RPC messages from src, observes
// each one through the interceptor, and forwards the exact bytes to dst
// unconditionally. Capture never gates forwarding: CaptureInterceptor.Observe
// has no error return by design.
func (p *ProxyService) copyMessages(ctx context.Context, src io.Reader, dst io.Writer, direction mcp.Direction, logger *slog.Logger) error {
	scanner := bufio.NewScanner(src)
	buf := make([]byte, 0, 256*1024) // 256KB initial
	scanner.Buffer(buf, 1024*1024)   // 1MB max per line

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		startTime := time.Now()
		raw := scanner.Bytes()

		msg := mcp.WrapMessage(raw, direction)
		msg.Timestamp = startTime

		spanCtx, span := p.startMessageSpan(ctx, msg, direction)
		p.interceptor.Observe(spanCtx, msg)
		span.End()

		if _, err := dst.Write(msg.Raw); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		if _, err := dst.Write([]byte("\n")); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}

		logger.Debug("forwarded message",
			"direction", direction,
			"method", msg.Method(),
			"captured", msg.Captured,
			"latency_us", time.Since(startTime).Microseconds(),
		)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan error: %w", err)
	}

	return nil
}

// mirrorStderr copies every line the upstream server writes to stderr onto
// this process's stderr unconditionally, then additionally probes the line
// for JSON-RPC shape and, if it matches, captures it as a server_to_host
// record without forwarding it to the host. This covers servers that
// mis-route protocol traffic to stderr instead of stdout. Mirroring never
// blocks message forwarding and a stderr read error is logged, not fatal.
func (p *ProxyService) mirrorStderr(ctx context.Context, stderr io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(stderr)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()

		fmt.Fprintln(p.stderrMirror, string(line))

		msg := mcp.WrapMessage(line, mcp.ServerToHost)
		if msg.Captured {
			p.interceptor.Observe(ctx, msg)
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Debug("stderr mirror stopped", "error", err)
	}
}

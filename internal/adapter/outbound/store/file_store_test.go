package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/pkg/mcp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makeRecord(ts time.Time, server string) message.RawMessageRecord {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	msg := mcp.WrapMessage(raw, mcp.HostToServer)
	msg.Timestamp = ts
	return message.NewRecordFromMessage("rec-1", msg, "cursor", server, nil)
}

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "subdir", "capture")
	s, err := NewFileStore(dir, "messages.jsonl", "decisions.jsonl", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = s.Close() }()

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory, got file")
	}
}

func TestFileStore_CaptureWritesJSONLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir, "messages.jsonl", "decisions.jsonl", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	rec := makeRecord(time.Now(), "fs-server")
	if err := s.Capture(ctx, rec); err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	reader := NewReader(dir, "messages.jsonl", "decisions.jsonl")
	got, err := reader.ReadMessages(ctx, Filter{})
	if err != nil {
		t.Fatalf("ReadMessages() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Server != "fs-server" {
		t.Errorf("Server = %q, want fs-server", got[0].Server)
	}
}

func TestFileStore_CaptureAppendsAcrossCalls(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir, "messages.jsonl", "", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Capture(ctx, makeRecord(time.Now(), "fs-server")); err != nil {
			t.Fatalf("Capture() error: %v", err)
		}
	}

	reader := NewReader(dir, "messages.jsonl", "")
	got, err := reader.ReadMessages(ctx, Filter{})
	if err != nil {
		t.Fatalf("ReadMessages() error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 records, got %d", len(got))
	}
}

func TestFileStore_CaptureDecisionWithoutConfiguredFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir, "messages.jsonl", "", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = s.Close() }()

	err = s.CaptureDecision(context.Background(), message.LLMDecisionRecord{})
	if err == nil {
		t.Error("expected error when no decisions file is configured")
	}
}

func TestReader_FilterBySinceAndServer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir, "messages.jsonl", "", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}

	base := time.Now()
	_ = s.Capture(context.Background(), makeRecord(base, "server-a"))
	_ = s.Capture(context.Background(), makeRecord(base.Add(time.Minute), "server-b"))
	_ = s.Capture(context.Background(), makeRecord(base.Add(2*time.Minute), "server-a"))
	_ = s.Close()

	reader := NewReader(dir, "messages.jsonl", "")

	byServer, err := reader.ReadMessages(context.Background(), Filter{Server: "server-a"})
	if err != nil {
		t.Fatalf("ReadMessages() error: %v", err)
	}
	if len(byServer) != 2 {
		t.Fatalf("expected 2 records for server-a, got %d", len(byServer))
	}

	bySince, err := reader.ReadMessages(context.Background(), Filter{Since: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("ReadMessages() error: %v", err)
	}
	if len(bySince) != 1 {
		t.Fatalf("expected 1 record after since filter, got %d", len(bySince))
	}
}

func TestReader_ReadMessagesMissingFileReturnsEmpty(t *testing.T) {
	t.Parallel()

	reader := NewReader(t.TempDir(), "missing.jsonl", "")
	got, err := reader.ReadMessages(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ReadMessages() error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing file, got %v", got)
	}
}

func TestFileStore_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir, "messages.jsonl", "decisions.jsonl", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

// TestFileStore_CaptureFailsOnUnwritableFile exercises a genuine write
// failure rather than simulating one: permission is checked by the OS at
// open(), not on each subsequent write, so chmod'ing a file read-only after
// it is already open for writing would not reliably reproduce this. Opening
// the messages file O_RDONLY from the start does.
func TestFileStore_CaptureFailsOnUnwritableFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "messages.jsonl")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDONLY, 0600)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer f.Close()

	s := &FileStore{messagesPath: path, messagesFile: f, logger: testLogger()}

	rec := makeRecord(time.Now(), "fs-server")
	if err := s.Capture(context.Background(), rec); err == nil {
		t.Fatal("expected Capture to fail against a read-only file descriptor")
	}
}

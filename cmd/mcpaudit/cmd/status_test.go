package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/store"
	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/pkg/mcp"
)

func TestStatusCmd_Registered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "proxy-status" {
			found = true
			break
		}
	}
	if !found {
		t.Error("proxy-status command not registered with rootCmd")
	}
}

func TestPrintChildStatus_UnknownPID(t *testing.T) {
	var buf bytes.Buffer
	printChildStatus(&buf, 999999999)
	if !bytes.Contains(buf.Bytes(), []byte("not found")) {
		t.Errorf("expected 'not found' in output, got %q", buf.String())
	}
}

func TestLastMessageTimestamp_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("write empty store: %v", err)
	}
	reader := store.NewReader("", path, "")

	if _, ok := lastMessageTimestamp(reader); ok {
		t.Error("expected no timestamp for an empty store")
	}
}

func TestLastMessageTimestamp_ReturnsLatest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.jsonl")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create store file: %v", err)
	}

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Minute)

	enc := json.NewEncoder(f)
	for i, ts := range []time.Time{first, second} {
		msg := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","method":"ping"}`), mcp.HostToServer)
		msg.Timestamp = ts
		rec := message.NewRecordFromMessage(fmt.Sprintf("id-%d", i), msg, "host", "fs", nil)
		if err := enc.Encode(rec); err != nil {
			t.Fatalf("encode record: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close store file: %v", err)
	}

	reader := store.NewReader("", path, "")
	last, ok := lastMessageTimestamp(reader)
	if !ok {
		t.Fatal("expected a timestamp")
	}
	if !last.Equal(second) {
		t.Errorf("lastMessageTimestamp() = %v, want %v", last, second)
	}
}

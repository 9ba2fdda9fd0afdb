package reportsink

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/flow"
	"github.com/cogtrace/mcpaudit/internal/domain/message"
	"github.com/cogtrace/mcpaudit/internal/domain/report"
	"github.com/cogtrace/mcpaudit/internal/domain/scoring"
	"github.com/cogtrace/mcpaudit/pkg/mcp"
)

func TestFilename_WithServer(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := Filename("usability", "fs", FormatHTML, now)
	want := "usability_report_fs_20260304_050607.html"
	if got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}

func TestFilename_WithoutServer(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := Filename("trace", "", FormatJSON, now)
	want := "trace_report_20260304_050607.json"
	if got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}

func rec(t time.Time, server, raw string, dir mcp.Direction) message.RawMessageRecord {
	msg := mcp.WrapMessage([]byte(raw), dir)
	msg.Timestamp = t
	return message.NewRecordFromMessage("id", msg, "cursor", server, nil)
}

func sampleTrace() report.TraceReport {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []message.RawMessageRecord{
		rec(base, "fs", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_files","arguments":{}}}`, mcp.HostToServer),
		rec(base.Add(time.Second), "fs", `{"jsonrpc":"2.0","id":1,"result":{}}`, mcp.ServerToHost),
	}
	return report.NewBuilder(flow.NewReconstructor(30), scoring.NewScorer(scoring.DefaultWeights)).BuildTrace(records, report.Window{Server: "fs"})
}

func TestWriteTrace_AllFormatsProduceNonEmptyOutput(t *testing.T) {
	t.Parallel()

	r := sampleTrace()
	for _, format := range []Format{FormatJSON, FormatHTML, FormatTXT} {
		var buf bytes.Buffer
		if err := WriteTrace(&buf, format, r); err != nil {
			t.Fatalf("WriteTrace(%s) error: %v", format, err)
		}
		if buf.Len() == 0 {
			t.Errorf("WriteTrace(%s) produced empty output", format)
		}
	}
}

func TestWriteTrace_HTMLContainsFlowID(t *testing.T) {
	t.Parallel()

	r := sampleTrace()
	var buf bytes.Buffer
	if err := WriteTrace(&buf, FormatHTML, r); err != nil {
		t.Fatalf("WriteTrace error: %v", err)
	}
	if !strings.Contains(buf.String(), r.Flows[0].FlowID) {
		t.Error("expected HTML output to contain the flow id")
	}
}

func TestWriteTrace_UnsupportedFormatErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteTrace(&buf, Format("xml"), sampleTrace()); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}

func sampleUsability() report.UsabilityReport {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []message.RawMessageRecord{
		rec(base, "fs", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"x","arguments":{}}}`, mcp.HostToServer),
		rec(base.Add(time.Second), "fs", `{"jsonrpc":"2.0","id":1,"error":{"code":401,"message":"unauthorized"}}`, mcp.ServerToHost),
	}
	return report.NewBuilder(flow.NewReconstructor(30), scoring.NewScorer(scoring.DefaultWeights)).BuildUsability(records, nil, report.Window{})
}

func TestWriteUsability_AllFormatsProduceNonEmptyOutput(t *testing.T) {
	t.Parallel()

	r := sampleUsability()
	for _, format := range []Format{FormatJSON, FormatHTML, FormatTXT} {
		var buf bytes.Buffer
		if err := WriteUsability(&buf, format, r); err != nil {
			t.Fatalf("WriteUsability(%s) error: %v", format, err)
		}
		if buf.Len() == 0 {
			t.Errorf("WriteUsability(%s) produced empty output", format)
		}
	}
}

func TestWriteUsability_HTMLContainsGradeAndFormula(t *testing.T) {
	t.Parallel()

	r := sampleUsability()
	var buf bytes.Buffer
	if err := WriteUsability(&buf, FormatHTML, r); err != nil {
		t.Fatalf("WriteUsability error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, string(r.CognitiveLoad.Grade)) {
		t.Error("expected HTML output to contain the letter grade")
	}
	if !strings.Contains(out, "retry_frustration") {
		t.Error("expected HTML output to show the grade formula")
	}
}

func sampleDetailed() report.DetailedReport {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []message.RawMessageRecord{
		rec(base, "fs", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_files","arguments":{}}}`, mcp.HostToServer),
		rec(base.Add(time.Second), "fs", `{"jsonrpc":"2.0","id":1,"result":{}}`, mcp.ServerToHost),
	}
	return report.NewBuilder(flow.NewReconstructor(30), scoring.NewScorer(scoring.DefaultWeights)).BuildDetailed(records, nil, report.Window{})
}

func TestWriteDetailed_AllFormatsProduceNonEmptyOutput(t *testing.T) {
	t.Parallel()

	r := sampleDetailed()
	for _, format := range []Format{FormatJSON, FormatHTML, FormatTXT} {
		var buf bytes.Buffer
		if err := WriteDetailed(&buf, format, r); err != nil {
			t.Fatalf("WriteDetailed(%s) error: %v", format, err)
		}
		if buf.Len() == 0 {
			t.Errorf("WriteDetailed(%s) produced empty output", format)
		}
	}
}

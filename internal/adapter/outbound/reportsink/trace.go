package reportsink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	textTemplate "text/template"

	"github.com/cogtrace/mcpaudit/internal/domain/report"
)

// WriteTrace renders r to w in the requested format.
func WriteTrace(w io.Writer, format Format, r report.TraceReport) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatHTML:
		return writeTraceHTML(w, r)
	case FormatTXT:
		return writeTraceTXT(w, r)
	default:
		return fmt.Errorf("reportsink: unsupported format %q", format)
	}
}

type traceFlowView struct {
	FlowID   string
	Calls    []callRow
	Timeline []timelineRow
}

type callRow struct {
	ToolName  string
	Server    string
	Success   bool
	Arguments string
}

type timelineRow struct {
	Timestamp string
	Direction string
	Server    string
	Payload   string
}

type traceView struct {
	GeneratedAt string
	Server      string
	Flows       []traceFlowView
}

func buildTraceView(r report.TraceReport) traceView {
	view := traceView{
		GeneratedAt: r.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		Server:      r.Meta.Server,
	}
	for _, f := range r.Flows {
		fv := traceFlowView{FlowID: f.FlowID}
		for _, c := range f.MCPCalls {
			args, _ := json.Marshal(c.Arguments)
			fv.Calls = append(fv.Calls, callRow{
				ToolName:  c.ToolName,
				Server:    c.Request.Server,
				Success:   c.Success,
				Arguments: string(args),
			})
		}
		for _, ev := range f.Timeline {
			if ev.Message == nil {
				continue
			}
			fv.Timeline = append(fv.Timeline, timelineRow{
				Timestamp: ev.Timestamp.Format("15:04:05.000"),
				Direction: ev.Message.Direction.String(),
				Server:    ev.Message.Server,
				Payload:   string(ev.Message.Payload),
			})
		}
		view.Flows = append(view.Flows, fv)
	}
	return view
}

func writeTraceHTML(w io.Writer, r report.TraceReport) error {
	tmpl, err := template.New("trace").Parse(traceHTMLTemplate)
	if err != nil {
		return fmt.Errorf("reportsink: parse trace template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildTraceView(r)); err != nil {
		return fmt.Errorf("reportsink: render trace html: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func writeTraceTXT(w io.Writer, r report.TraceReport) error {
	tmpl, err := textTemplate.New("trace").Parse(traceTXTTemplate)
	if err != nil {
		return fmt.Errorf("reportsink: parse trace template: %w", err)
	}
	return tmpl.Execute(w, buildTraceView(r))
}

const traceHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>mcpaudit trace report</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #f5f5f5; color: #333; padding: 20px; }
.container { max-width: 1100px; margin: 0 auto; background: #fff; border-radius: 8px; padding: 30px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
h1 { color: #2c3e50; border-bottom: 3px solid #3498db; padding-bottom: 10px; }
h2 { color: #34495e; margin-top: 25px; }
table { width: 100%; border-collapse: collapse; margin-top: 10px; }
th, td { padding: 8px; text-align: left; border-bottom: 1px solid #eee; font-size: 13px; }
th { background: #f8f9fa; text-transform: uppercase; font-size: 11px; color: #7f8c8d; }
.ok { color: #27ae60; }
.fail { color: #e74c3c; }
pre { white-space: pre-wrap; word-break: break-all; font-size: 12px; }
footer { margin-top: 30px; color: #95a5a6; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<h1>Trace Report</h1>
<p>server: {{if .Server}}{{.Server}}{{else}}all{{end}}</p>
{{range .Flows}}
<h2>{{.FlowID}}</h2>
<table>
<thead><tr><th>Tool</th><th>Server</th><th>Status</th><th>Arguments</th></tr></thead>
<tbody>
{{range .Calls}}
<tr><td>{{.ToolName}}</td><td>{{.Server}}</td><td class="{{if .Success}}ok{{else}}fail{{end}}">{{if .Success}}ok{{else}}failed{{end}}</td><td><pre>{{.Arguments}}</pre></td></tr>
{{end}}
</tbody>
</table>
<table>
<thead><tr><th>Time</th><th>Direction</th><th>Server</th><th>Payload</th></tr></thead>
<tbody>
{{range .Timeline}}
<tr><td>{{.Timestamp}}</td><td>{{.Direction}}</td><td>{{.Server}}</td><td><pre>{{.Payload}}</pre></td></tr>
{{end}}
</tbody>
</table>
{{end}}
<footer>Generated at {{.GeneratedAt}}</footer>
</div>
</body>
</html>`

const traceTXTTemplate = `TRACE REPORT (server={{if .Server}}{{.Server}}{{else}}all{{end}})
generated at {{.GeneratedAt}}
{{range .Flows}}
== {{.FlowID}} ==
{{range .Calls}}  call {{.ToolName}}@{{.Server}} [{{if .Success}}ok{{else}}failed{{end}}] args={{.Arguments}}
{{end}}{{range .Timeline}}  {{.Timestamp}} {{.Direction}} {{.Server}} {{.Payload}}
{{end}}{{end}}`

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

// WriteDetailed renders r to w in the requested format.
func WriteDetailed(w io.Writer, format Format, r report.DetailedReport) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatHTML:
		return writeDetailedHTML(w, r)
	case FormatTXT:
		return writeDetailedTXT(w, r)
	default:
		return fmt.Errorf("reportsink: unsupported format %q", format)
	}
}

type detailedFlowView struct {
	FlowID          string
	StartTime       string
	EndTime         string
	DurationMs      int64
	EventCount      int
	ServersInvolved string
	CrossServerFlow bool
	Success         bool
	HasUserContext  bool
	UserPrompt      string
	LLMReasoning    string
	Calls           []callRow
	Decisions       []decisionRow
	Timeline        []timelineRow
}

type decisionRow struct {
	Timestamp  string
	UserPrompt string
	Reasoning  string
	Success    bool
}

type detailedView struct {
	GeneratedAt string
	Server      string
	Flows       []detailedFlowView
}

func buildDetailedView(r report.DetailedReport) detailedView {
	view := detailedView{
		GeneratedAt: r.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		Server:      r.Meta.Server,
	}
	for _, f := range r.Flows {
		fv := detailedFlowView{
			FlowID:          f.FlowID,
			StartTime:       f.StartTime.Format("15:04:05.000"),
			EndTime:         f.EndTime.Format("15:04:05.000"),
			DurationMs:      f.DurationMs,
			EventCount:      f.EventCount,
			ServersInvolved: joinServers(f.ServersInvolved),
			CrossServerFlow: f.CrossServerFlow,
			Success:         f.Success,
			HasUserContext:  f.HasUserContext,
			UserPrompt:      f.UserPrompt,
			LLMReasoning:    f.LLMReasoning,
		}
		for _, c := range f.MCPCalls {
			args, _ := json.Marshal(c.Arguments)
			fv.Calls = append(fv.Calls, callRow{ToolName: c.ToolName, Server: c.Request.Server, Success: c.Success, Arguments: string(args)})
		}
		for _, d := range f.LLMDecisions {
			fv.Decisions = append(fv.Decisions, decisionRow{
				Timestamp:  d.Timestamp.Format("15:04:05.000"),
				UserPrompt: d.UserPrompt,
				Reasoning:  d.Reasoning,
				Success:    d.Success,
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

func joinServers(servers []string) string {
	out := ""
	for i, s := range servers {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

func writeDetailedHTML(w io.Writer, r report.DetailedReport) error {
	tmpl, err := template.New("detailed").Parse(detailedHTMLTemplate)
	if err != nil {
		return fmt.Errorf("reportsink: parse detailed template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildDetailedView(r)); err != nil {
		return fmt.Errorf("reportsink: render detailed html: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func writeDetailedTXT(w io.Writer, r report.DetailedReport) error {
	tmpl, err := textTemplate.New("detailed").Parse(detailedTXTTemplate)
	if err != nil {
		return fmt.Errorf("reportsink: parse detailed template: %w", err)
	}
	return tmpl.Execute(w, buildDetailedView(r))
}

const detailedHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>mcpaudit detailed report</title>
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
.meta-info dl { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 10px; background: #ecf0f1; border-radius: 6px; padding: 15px; }
.meta-info dt { font-weight: bold; color: #7f8c8d; font-size: 11px; text-transform: uppercase; }
pre { white-space: pre-wrap; word-break: break-all; font-size: 12px; }
footer { margin-top: 30px; color: #95a5a6; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<h1>Detailed Report</h1>
{{range .Flows}}
<h2>{{.FlowID}} <span class="{{if .Success}}ok{{else}}fail{{end}}">[{{if .Success}}ok{{else}}failed{{end}}]</span></h2>
<div class="meta-info">
<dl>
<div><dt>Servers</dt><dd>{{.ServersInvolved}}</dd></div>
<div><dt>Cross-server</dt><dd>{{.CrossServerFlow}}</dd></div>
<div><dt>Duration</dt><dd>{{.DurationMs}}ms</dd></div>
<div><dt>Events</dt><dd>{{.EventCount}}</dd></div>
<div><dt>User context</dt><dd>{{.HasUserContext}}</dd></div>
</dl>
</div>
<p><strong>Prompt:</strong> {{.UserPrompt}}<br><strong>Reasoning:</strong> {{.LLMReasoning}}</p>
<table>
<thead><tr><th>Tool</th><th>Server</th><th>Status</th><th>Arguments</th></tr></thead>
<tbody>
{{range .Calls}}
<tr><td>{{.ToolName}}</td><td>{{.Server}}</td><td class="{{if .Success}}ok{{else}}fail{{end}}">{{if .Success}}ok{{else}}failed{{end}}</td><td><pre>{{.Arguments}}</pre></td></tr>
{{end}}
</tbody>
</table>
{{if .Decisions}}
<table>
<thead><tr><th>Time</th><th>Prompt</th><th>Reasoning</th><th>Success</th></tr></thead>
<tbody>
{{range .Decisions}}
<tr><td>{{.Timestamp}}</td><td>{{.UserPrompt}}</td><td>{{.Reasoning}}</td><td>{{.Success}}</td></tr>
{{end}}
</tbody>
</table>
{{end}}
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

const detailedTXTTemplate = `DETAILED REPORT (server={{if .Server}}{{.Server}}{{else}}all{{end}})
generated at {{.GeneratedAt}}
{{range .Flows}}
== {{.FlowID}} [{{if .Success}}ok{{else}}failed{{end}}] ==
servers: {{.ServersInvolved}}  cross-server: {{.CrossServerFlow}}  duration: {{.DurationMs}}ms  events: {{.EventCount}}
prompt: {{.UserPrompt}}
reasoning: {{.LLMReasoning}}
{{range .Calls}}  call {{.ToolName}}@{{.Server}} [{{if .Success}}ok{{else}}failed{{end}}] args={{.Arguments}}
{{end}}{{range .Decisions}}  decision {{.Timestamp}} prompt={{.UserPrompt}} reasoning={{.Reasoning}}
{{end}}{{range .Timeline}}  {{.Timestamp}} {{.Direction}} {{.Server}} {{.Payload}}
{{end}}{{end}}`

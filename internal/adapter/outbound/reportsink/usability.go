package reportsink

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	textTemplate "text/template"

	"github.com/cogtrace/mcpaudit/internal/domain/report"
)

// WriteUsability renders r to w in the requested format.
func WriteUsability(w io.Writer, format Format, r report.UsabilityReport) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatHTML:
		return writeUsabilityHTML(w, r)
	case FormatTXT:
		return writeUsabilityTXT(w, r)
	default:
		return fmt.Errorf("reportsink: unsupported format %q", format)
	}
}

type usabilityView struct {
	GeneratedAt      string
	Server           string
	Grade            string
	Composite        string
	PromptComplexity string
	ContextSwitching string
	RetryFrustration string
	ConfigFriction   string
	Integration      string
	TotalFlows       int
	SuccessRate      string
	CrossServerFlows int
	AvgDurationMs    string
	Insights         []string
	Formula          string
	RetryExplain     []string
	ConfigExplain    []string
}

func buildUsabilityView(r report.UsabilityReport) usabilityView {
	var retryExplain, configExplain []string
	for _, f := range r.CognitiveLoad.PerFlow {
		retryExplain = append(retryExplain, f.RetryBreakdown.Explanations...)
		configExplain = append(configExplain, f.ConfigBreakdown.Explanations...)
	}

	return usabilityView{
		GeneratedAt:      r.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		Server:           r.Meta.Server,
		Grade:            string(r.CognitiveLoad.Grade),
		Composite:        fmt.Sprintf("%.1f", r.CognitiveLoad.Composite),
		PromptComplexity: fmt.Sprintf("%.1f", r.CognitiveLoad.PromptComplexity),
		ContextSwitching: fmt.Sprintf("%.1f", r.CognitiveLoad.ContextSwitching),
		RetryFrustration: fmt.Sprintf("%.1f", r.CognitiveLoad.RetryFrustration),
		ConfigFriction:   fmt.Sprintf("%.1f", r.CognitiveLoad.ConfigurationFriction),
		Integration:      fmt.Sprintf("%.1f", r.CognitiveLoad.IntegrationCognition),
		TotalFlows:       r.UsabilityMetrics.TotalFlows,
		SuccessRate:      fmt.Sprintf("%.1f%%", r.UsabilityMetrics.SuccessRate*100),
		CrossServerFlows: r.UsabilityMetrics.CrossServerFlows,
		AvgDurationMs:    fmt.Sprintf("%.0f", r.UsabilityMetrics.AvgDurationMs),
		Insights:         r.UsabilityInsights,
		Formula:          r.GradeCalculation.Formula,
		RetryExplain:     retryExplain,
		ConfigExplain:    configExplain,
	}
}

func writeUsabilityHTML(w io.Writer, r report.UsabilityReport) error {
	tmpl, err := template.New("usability").Parse(usabilityHTMLTemplate)
	if err != nil {
		return fmt.Errorf("reportsink: parse usability template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildUsabilityView(r)); err != nil {
		return fmt.Errorf("reportsink: render usability html: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func writeUsabilityTXT(w io.Writer, r report.UsabilityReport) error {
	tmpl, err := textTemplate.New("usability").Parse(usabilityTXTTemplate)
	if err != nil {
		return fmt.Errorf("reportsink: parse usability template: %w", err)
	}
	return tmpl.Execute(w, buildUsabilityView(r))
}

const usabilityHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>mcpaudit usability report</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #f5f5f5; color: #333; padding: 20px; }
.container { max-width: 900px; margin: 0 auto; background: #fff; border-radius: 8px; padding: 30px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
h1 { color: #2c3e50; border-bottom: 3px solid #3498db; padding-bottom: 10px; }
h2 { color: #34495e; margin-top: 25px; }
.grade { font-size: 48px; font-weight: bold; color: #9b59b6; }
.summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 15px; margin: 15px 0; }
.summary-card { background: #f8f9fa; border-radius: 6px; padding: 15px; border-left: 4px solid #3498db; }
.summary-card label { display: block; font-size: 11px; color: #7f8c8d; text-transform: uppercase; }
.summary-card .value { font-size: 22px; font-weight: bold; color: #2c3e50; }
ul { padding-left: 20px; }
details { background: #f8f9fa; border-radius: 6px; padding: 10px 15px; margin: 8px 0; }
summary { cursor: pointer; font-weight: 600; color: #34495e; }
code { background: #ecf0f1; padding: 2px 6px; border-radius: 4px; }
footer { margin-top: 30px; color: #95a5a6; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<h1>Usability Report</h1>
<p>server: {{if .Server}}{{.Server}}{{else}}all{{end}}</p>
<div class="grade">{{.Grade}}</div>
<div class="summary-grid">
<div class="summary-card"><label>Composite Load</label><div class="value">{{.Composite}}</div></div>
<div class="summary-card"><label>Total Flows</label><div class="value">{{.TotalFlows}}</div></div>
<div class="summary-card"><label>Success Rate</label><div class="value">{{.SuccessRate}}</div></div>
<div class="summary-card"><label>Cross-server Flows</label><div class="value">{{.CrossServerFlows}}</div></div>
<div class="summary-card"><label>Avg Duration</label><div class="value">{{.AvgDurationMs}}ms</div></div>
</div>
<h2>Cognitive Load Factors</h2>
<div class="summary-grid">
<div class="summary-card"><label>Prompt Complexity</label><div class="value">{{.PromptComplexity}}</div></div>
<div class="summary-card"><label>Context Switching</label><div class="value">{{.ContextSwitching}}</div></div>
<div class="summary-card"><label>Retry Frustration</label><div class="value">{{.RetryFrustration}}</div></div>
<div class="summary-card"><label>Configuration Friction</label><div class="value">{{.ConfigFriction}}</div></div>
<div class="summary-card"><label>Integration Cognition</label><div class="value">{{.Integration}}</div></div>
</div>
<details>
<summary>Retry frustration breakdown</summary>
<ul>{{range .RetryExplain}}<li>{{.}}</li>{{end}}</ul>
</details>
<details>
<summary>Configuration friction breakdown</summary>
<ul>{{range .ConfigExplain}}<li>{{.}}</li>{{end}}</ul>
</details>
<h2>Insights</h2>
<ul>{{range .Insights}}<li>{{.}}</li>{{end}}</ul>
<h2>Grade calculation</h2>
<p><code>{{.Formula}}</code></p>
<p>composite = {{.Composite}} &rarr; grade {{.Grade}}</p>
<footer>Generated at {{.GeneratedAt}}</footer>
</div>
</body>
</html>`

const usabilityTXTTemplate = `USABILITY REPORT (server={{if .Server}}{{.Server}}{{else}}all{{end}})
generated at {{.GeneratedAt}}

grade: {{.Grade}}  composite: {{.Composite}}
total flows: {{.TotalFlows}}  success rate: {{.SuccessRate}}  cross-server: {{.CrossServerFlows}}  avg duration: {{.AvgDurationMs}}ms

factors:
  prompt_complexity:      {{.PromptComplexity}}
  context_switching:      {{.ContextSwitching}}
  retry_frustration:      {{.RetryFrustration}}
  configuration_friction: {{.ConfigFriction}}
  integration_cognition:  {{.Integration}}

retry frustration breakdown:
{{range .RetryExplain}}  - {{.}}
{{end}}
configuration friction breakdown:
{{range .ConfigExplain}}  - {{.}}
{{end}}
insights:
{{range .Insights}}  - {{.}}
{{end}}
formula: {{.Formula}}
composite = {{.Composite}} -> grade {{.Grade}}
`

package report

import (
	"bytes"
	"html/template"
)

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>WAF Traffic Report - {{.Hostname}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1a1a2e; }
  h1 { font-size: 1.4rem; }
  h2 { font-size: 1.1rem; margin-top: 2rem; }
  .meta { color: #555; font-size: 0.9rem; }
  table { border-collapse: collapse; margin-top: 0.5rem; width: 100%; }
  th, td { border: 1px solid #ddd; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
  th { background: #f4f4f8; }
  .sev-CRITICAL { color: #fff; background: #c0392b; font-weight: bold; }
  .sev-HIGH { color: #fff; background: #e67e22; }
  .sev-MEDIUM { background: #f1c40f; }
  .sev-LOW { background: #d5e8d4; }
  .sev-INFO { background: #eee; }
</style>
</head>
<body>
<h1>WAF Traffic Report</h1>
<p class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}} &middot; Run {{.RunID}}</p>
<p>Primary tenant: <strong>{{.Hostname}}</strong> ({{.Identity}})<br>
Total attacks: <strong>{{.TotalAttacks}}</strong></p>

<h2>Detected Techniques</h2>
{{if .Techniques}}
<table>
<tr><th>Technique</th><th>Category</th><th>OWASP</th><th>Severity</th><th>Count</th><th>Risk</th></tr>
{{range .Techniques}}
<tr>
  <td>{{.TechniqueID}}</td>
  <td>{{.Category}}</td>
  <td>{{.OWASP}}</td>
  <td class="sev-{{.Severity}}">{{.Severity}}</td>
  <td>{{.Count}}</td>
  <td>{{printf "%.1f" .RiskScore}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No attack techniques detected.</p>
{{end}}

<h2>Severity Distribution</h2>
<table>
<tr><th>Severity</th><th>Events</th></tr>
{{range $i, $label := .Severity.Labels}}
<tr><td>{{$label}}</td><td>{{index $.Severity.Values $i}}</td></tr>
{{end}}
</table>

<h2>OWASP Categories</h2>
<table>
<tr><th>Category</th><th>Events</th></tr>
{{range $i, $label := .OWASP.Labels}}
<tr><td>{{$label}}</td><td>{{index $.OWASP.Values $i}}</td></tr>
{{end}}
</table>

<h2>Tenants</h2>
<table>
<tr><th>Hostname</th><th>Identity</th><th>Events</th></tr>
{{range .Tenants}}
<tr><td>{{.Hostname}}</td><td>{{.Identity}}</td><td>{{.Events}}</td></tr>
{{end}}
</table>

<h2>Hourly Timeline</h2>
<table>
<tr><th>Hour</th><th>Events</th></tr>
{{range $i, $label := .Timeline.Labels}}
<tr><td>{{$label}}</td><td>{{index $.Timeline.Values $i}}</td></tr>
{{end}}
</table>
</body>
</html>
`))

// renderHTML renders the payload into a self-contained HTML page.
func renderHTML(p *Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package output

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"selfplay/internal/dialogue"
)

// The transcript page is self-contained: inline styles, no scripts, no
// external assets, so it can be mailed around or archived as-is.
var transcriptTmpl = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"rfc3339": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	},
	"pct": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Conversation {{.ID}}</title>
<style>
body { font-family: Georgia, serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
header { border-bottom: 2px solid #222; padding-bottom: 0.5rem; margin-bottom: 1.5rem; }
dl { display: grid; grid-template-columns: max-content 1fr; gap: 0.2rem 1rem; font-size: 0.9rem; }
dt { font-weight: bold; }
.turn { margin: 1rem 0; padding: 0.75rem 1rem; border-left: 3px solid #888; background: #f7f7f4; }
.turn:nth-child(even) { border-left-color: #446; }
.speaker { font-weight: bold; margin-bottom: 0.25rem; }
.meta { color: #666; font-size: 0.8rem; }
.response { white-space: pre-wrap; }
.ended { margin-top: 1.5rem; font-style: italic; color: #444; }
</style>
</head>
<body>
<header>
<h1>Conversation transcript</h1>
<dl>
<dt>id</dt><dd>{{.ID}}</dd>
{{if .Scenario}}<dt>scenario</dt><dd>{{.Scenario}}</dd>{{end}}
<dt>status</dt><dd>{{.Status}}</dd>
{{if not .StartedAt.IsZero}}<dt>started</dt><dd>{{rfc3339 .StartedAt}}</dd>{{end}}
{{if not .EndedAt.IsZero}}<dt>ended</dt><dd>{{rfc3339 .EndedAt}}</dd>{{end}}
<dt>turns</dt><dd>{{len .Turns}}</dd>
<dt>total tokens</dt><dd>{{.Metrics.TotalTokens}}</dd>
</dl>
</header>
<p><strong>Opening message:</strong> {{.Start}}</p>
{{range .Turns}}
<div class="turn">
<div class="speaker">{{.Speaker}} <span class="meta">turn {{.Index}}{{with .Timestamp}}{{if not .IsZero}} · {{rfc3339 .}}{{end}}{{end}}</span></div>
<div class="response">{{.Response}}</div>
</div>
{{end}}
{{if .EndSignal.Detected}}
<p class="ended">Ended naturally at turn {{.EndSignal.AtTurn}}: {{.EndSignal.Reason}} (confidence {{pct .EndSignal.Confidence}}).</p>
{{end}}
</body>
</html>
`))

func formatResultHTML(result dialogue.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

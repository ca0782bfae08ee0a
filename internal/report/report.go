// Package report renders the publish-filtered ranking into a self-contained
// static HTML page suitable for publishing as-is.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/oddsflow/scanner/internal/models"
	"github.com/oddsflow/scanner/internal/ranker"
)

// Data is the template input for one rendered report.
type Data struct {
	GeneratedAt string
	Connector   string
	Thresholds  ranker.PublishThresholds
	Results     []models.RankedMarket
}

const pageTemplate = `<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width,initial-scale=1"/>
  <title>Flow Scanner</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system; margin: 0; background: #fafafa; }
    .wrap { max-width: 1100px; margin: 0 auto; padding: 20px; }
    h1 { margin: 0 0 6px 0; font-size: 22px; }
    .muted { color: #6b7280; font-size: 13px; line-height: 1.35; }
    .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(340px, 1fr)); gap: 12px; margin-top: 14px; }
    .card { background: white; border: 1px solid #e5e7eb; border-radius: 12px; padding: 12px; }
    .title { font-weight: 700; margin-bottom: 6px; }
    .row { display:flex; gap:10px; flex-wrap:wrap; margin-bottom: 8px; }
    .pill { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 12px; padding: 2px 6px; border: 1px solid #e5e7eb; border-radius: 999px; background:#f9fafb; }
    table { width: 100%; border-collapse: collapse; font-size: 13px; }
    td { padding: 2px 0; vertical-align: top; }
    td:first-child { color:#6b7280; width: 120px; }
    .empty { margin-top: 16px; padding: 12px; border: 1px dashed #d1d5db; border-radius: 12px; background: #fff; }
    .small { font-size: 12px; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>Flow Scanner</h1>
    <div class="muted">
      Static snapshot generated at <b>{{.GeneratedAt}}</b> (local time). Connector: <b>{{.Connector}}</b>.
    </div>
    <div class="muted">
      Showing markets with unusually aggressive, odds-aware flow (heuristic ranking). This is not a claim of wrongdoing.
    </div>
    <div class="muted small">
      Publish thresholds: z_flow &ge; {{.Thresholds.ZMin}}, depth_ratio &ge; {{.Thresholds.DepthRatioMin}}, entropy &ge; {{.Thresholds.EntropyMin}}, p &isin; [{{.Thresholds.PMin}}, {{.Thresholds.PMax}}]
    </div>

    {{if .Results}}
    <div class="grid">
      {{range .Results}}
      <div class="card">
        <div class="title">{{.Title}}</div>
        <div class="row">
          <span class="pill">{{.Platform}}:{{.MarketID}}</span>
          <span class="pill">score={{printf "%.4f" .Score}}</span>
        </div>
        <table>
          <tr><td>p</td><td>{{printf "%.3f" .P}}</td></tr>
          <tr><td>flow</td><td>{{printf "%.2f" .Flow}}</td></tr>
          <tr><td>depth</td><td>{{printf "%.2f" .Depth}}</td></tr>
          <tr><td>z_flow</td><td>{{printf "%.2f" .ZFlow}}</td></tr>
          <tr><td>depth_ratio</td><td>{{printf "%.3f" .DepthRatio}}</td></tr>
          <tr><td>entropy</td><td>{{printf "%.3f" .Entropy}}</td></tr>
          <tr><td>timestamp</td><td>{{.Timestamp.Format "2006-01-02T15:04:05Z07:00"}}</td></tr>
        </table>
      </div>
      {{end}}
    </div>
    {{else}}
    <div class="empty">
      <b>No markets passed the publish filter.</b>
      <div class="muted">
        This often means markets were quiet during the sampling window. Try loosening thresholds or increasing the report limit or warm-up polls.
      </div>
    </div>
    {{end}}
  </div>
</body>
</html>
`

var tmpl = template.Must(template.New("report").Parse(pageTemplate))

// Render produces the HTML page for the given publish-filtered results.
func Render(connector string, thresholds ranker.PublishThresholds, results []models.RankedMarket) ([]byte, error) {
	var buf bytes.Buffer
	data := Data{
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Connector:   connector,
		Thresholds:  thresholds,
		Results:     results,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the report and writes it to outputPath, creating parent
// directories as needed.
func Write(outputPath, connector string, thresholds ranker.PublishThresholds, results []models.RankedMarket) error {
	html, err := Render(connector, thresholds, results)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(outputPath, html, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

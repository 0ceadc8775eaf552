package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/kvbench/internal/bench"
	"github.com/torosent/kvbench/internal/hostinfo"
	"github.com/torosent/kvbench/internal/metrics"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Summary          bench.Summary
	LiveOps          []LiveOpRow
	OpsPerSec        float64
	Host             *hostinfo.Usage
	ThresholdSummary *ThresholdSummary
	SnapshotKeys     []string
	SnapshotError    string
	WorkersJSON      string
}

// LiveOpRow is one operation line of the percentile table.
type LiveOpRow struct {
	Op    metrics.Op
	Stats metrics.OpStats
}

type workerSeries struct {
	IDs     []int     `json:"ids"`
	Connect []float64 `json:"connect"`
	Read    []float64 `json:"read"`
	Write   []float64 `json:"write"`
}

// GenerateHTMLReport generates a standalone HTML report with an embedded
// per-worker latency chart.
func GenerateHTMLReport(w io.Writer, r Report) error {
	s := r.Summary

	series := workerSeries{}
	for _, res := range s.Results {
		series.IDs = append(series.IDs, res.ID)
		series.Connect = append(series.Connect, res.ConnectLatencyMs)
		series.Read = append(series.Read, res.AverageReadMs())
		series.Write = append(series.Write, res.AverageWriteMs())
	}
	workersJSON, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to marshal worker series: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Summary:          s,
		Host:             r.Host,
		ThresholdSummary: summarizeThresholds(r.Thresholds),
		SnapshotKeys:     s.Snapshot.Keys(),
		WorkersJSON:      string(workersJSON),
	}
	if s.SnapshotErr != nil {
		data.SnapshotError = s.SnapshotErr.Error()
	}
	if r.Live != nil {
		data.OpsPerSec = r.Live.OpsPerSec
		for _, op := range metrics.Ops {
			data.LiveOps = append(data.LiveOps, LiveOpRow{Op: op, Stats: r.Live.Ops[op]})
		}
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.3f", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>kvbench Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f4f6f8;
            color: #263238;
            line-height: 1.5;
            padding: 20px;
        }
        .container { max-width: 1200px; margin: 0 auto; background: white; border-radius: 6px; overflow: hidden; }
        header { background: #b71c1c; color: white; padding: 24px 32px; }
        header .meta { opacity: 0.85; font-size: 0.9rem; }
        .content { padding: 32px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 16px; margin-bottom: 32px; }
        .card { background: #fafafa; border-left: 4px solid #b71c1c; padding: 16px; }
        .card.error { border-left-color: #e65100; }
        .card h3 { font-size: 0.8rem; text-transform: uppercase; color: #607d8b; }
        .card .value { font-size: 1.8rem; font-weight: bold; }
        .section { margin-bottom: 32px; }
        .section h2 { font-size: 1.2rem; margin-bottom: 12px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #eceff1; }
        th { background: #fafafa; font-size: 0.85rem; }
        td.num { font-family: monospace; text-align: right; }
        .badge { padding: 2px 8px; border-radius: 3px; font-size: 0.8rem; }
        .badge-success { background: #c8e6c9; color: #1b5e20; }
        .badge-error { background: #ffcdd2; color: #b71c1c; }
        .chart { width: 100%; min-height: 300px; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>kvbench Report</h1>
            <div class="meta">Endpoint: {{.Summary.Endpoint}}</div>
            <div class="meta">Run {{.Summary.RunID}} | Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Summary.Duration}}</div>
        </header>

        <div class="content">
            {{if not .Summary.Performed}}
            <p>No run performed.</p>
            {{else}}
            <div class="grid">
                <div class="card">
                    <h3>Workers</h3>
                    <div class="value">{{.Summary.WorkerCount}}</div>
                </div>
                <div class="card">
                    <h3>Iterations per Worker</h3>
                    <div class="value">{{.Summary.IterationCount}}</div>
                </div>
                <div class="card error">
                    <h3>Failed Workers</h3>
                    <div class="value">{{.Summary.FailureCount}}</div>
                </div>
                {{if .LiveOps}}
                <div class="card">
                    <h3>Ops/sec</h3>
                    <div class="value">{{formatFloat .OpsPerSec}}</div>
                </div>
                {{end}}
            </div>

            <div class="section">
                <h2>Latency per Worker (ms)</h2>
                <table>
                    <thead><tr><th></th><th>Min</th><th>Median</th><th>Mean</th><th>Max</th></tr></thead>
                    <tbody>
                        <tr><td>connect</td><td class="num">{{formatFloat .Summary.Connect.Min}}</td><td class="num">{{formatFloat .Summary.Connect.Median}}</td><td class="num">{{formatFloat .Summary.Connect.Mean}}</td><td class="num">{{formatFloat .Summary.Connect.Max}}</td></tr>
                        <tr><td>read</td><td class="num">{{formatFloat .Summary.Read.Min}}</td><td class="num">{{formatFloat .Summary.Read.Median}}</td><td class="num">{{formatFloat .Summary.Read.Mean}}</td><td class="num">{{formatFloat .Summary.Read.Max}}</td></tr>
                        <tr><td>write</td><td class="num">{{formatFloat .Summary.Write.Min}}</td><td class="num">{{formatFloat .Summary.Write.Median}}</td><td class="num">{{formatFloat .Summary.Write.Mean}}</td><td class="num">{{formatFloat .Summary.Write.Max}}</td></tr>
                    </tbody>
                </table>
                <div id="workers-chart" class="chart"></div>
            </div>

            {{if .LiveOps}}
            <div class="section">
                <h2>Latency per Operation (ms)</h2>
                <table>
                    <thead><tr><th>Operation</th><th>Total</th><th>Failures</th><th>P50</th><th>P90</th><th>P99</th></tr></thead>
                    <tbody>
                        {{range .LiveOps}}
                        <tr><td>{{.Op}}</td><td class="num">{{.Stats.Total}}</td><td class="num">{{.Stats.Failures}}</td><td class="num">{{formatFloat .Stats.P50Ms}}</td><td class="num">{{formatFloat .Stats.P90Ms}}</td><td class="num">{{formatFloat .Stats.P99Ms}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead><tr><th>Threshold</th><th>Expected</th><th>Actual</th><th>Status</th></tr></thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td class="num">{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="badge badge-success">✓ PASS</span>{{else}}<span class="badge badge-error">✗ FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Host}}
            <div class="section">
                <h2>Load Generator</h2>
                <p>CPU {{formatFloat .Host.CPUPercent}}% of {{.Host.LogicalCPUs}} cores, memory {{formatFloat .Host.MemoryPercent}}% used.</p>
            </div>
            {{end}}

            <div class="section">
                <h2>Service Snapshot</h2>
                {{if .SnapshotKeys}}
                <table>
                    <tbody>
                        {{range .SnapshotKeys}}
                        <tr><td>{{.}}</td><td>{{index $.Summary.Snapshot .}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
                {{else}}
                <p>Unavailable{{if .SnapshotError}}: {{.SnapshotError}}{{end}}</p>
                {{end}}
            </div>
            {{end}}
        </div>
    </div>

    {{if .Summary.Performed}}
    <script>
        const workersJSON = {{.WorkersJSON}};
        const workers = JSON.parse(workersJSON);

        if (workers.ids && workers.ids.length > 0) {
            new uPlot({
                title: "Per-worker latency",
                width: document.getElementById('workers-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Worker" },
                    { label: "Connect", stroke: "#b71c1c", width: 2 },
                    { label: "Read avg", stroke: "#1565c0", width: 2 },
                    { label: "Write avg", stroke: "#2e7d32", width: 2 }
                ],
                axes: [
                    { label: "Worker" },
                    { label: "Latency (ms)" }
                ]
            }, [workers.ids, workers.connect, workers.read, workers.write], document.getElementById('workers-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`

package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/kvbench/internal/bench"
	"github.com/torosent/kvbench/internal/endpoint"
	"github.com/torosent/kvbench/internal/hostinfo"
	"github.com/torosent/kvbench/internal/kv"
	"github.com/torosent/kvbench/internal/metrics"
	"github.com/torosent/kvbench/internal/threshold"
)

func sampleSummary() bench.Summary {
	return bench.Summary{
		RunID:          "01HZX",
		Performed:      true,
		Endpoint:       endpoint.Descriptor{Host: "cache.local", Port: 6379, Credential: "s3cret"},
		WorkerCount:    2,
		IterationCount: 3,
		Connect:        metrics.Stat{Count: 2, Min: 1, Median: 2, Mean: 1.5, Max: 2},
		Read:           metrics.Stat{Count: 2, Min: 0.1, Median: 0.2, Mean: 0.15, Max: 0.2},
		Write:          metrics.Stat{Count: 2, Min: 0.3, Median: 0.4, Mean: 0.35, Max: 0.4},
		FailureCount:   1,
		FailuresByKind: map[bench.ErrorKind]int{bench.ErrorKindConnectivity: 1},
		Results: []bench.WorkerResult{
			{ID: 0, ConnectLatencyMs: 1, ReadLatenciesMs: []float64{0.1, 0.2, 0.15}, WriteLatenciesMs: []float64{0.3, 0.4, 0.35}, CompletedIterations: 3},
			{ID: 1, Failed: true, Kind: bench.ErrorKindConnectivity, Err: errors.New("refused")},
		},
		Snapshot: kv.Snapshot{"redis_version": "7.2.4", "connected_clients": "3"},
		Duration: 1500 * time.Millisecond,
	}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, Report{Summary: sampleSummary()})

	out := buf.String()
	for _, want := range []string{
		"Run ID:            01HZX",
		"Endpoint:          cache.local:6379",
		"Workers:           2",
		"3 per worker (3 completed)",
		"Connected Clients: 3",
		"Failures:          1 (connectivity: 1)",
		"Averages: [connect 1.500000 ms] [read 0.150000 ms] [write 0.350000 ms]",
		"Service Snapshot:",
		"  connected_clients: 3\n  redis_version: 7.2.4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "s3cret") {
		t.Error("report leaks the credential")
	}
	if strings.Contains(out, "Latency per operation") {
		t.Error("live section printed without live stats")
	}
}

func TestPrintReportOptionalSections(t *testing.T) {
	s := sampleSummary()
	s.Snapshot = nil
	s.SnapshotErr = errors.New("snapshot unavailable: ERR unknown command")

	live := &metrics.Stats{
		Ops: map[metrics.Op]metrics.OpStats{
			metrics.OpRead: {P50Ms: 0.2, P90Ms: 0.3, P99Ms: 0.9},
		},
		OpsPerSec: 1234.5,
		Errors:    map[string]int{"*net.OpError": 2},
	}
	host := &hostinfo.Usage{LogicalCPUs: 8, CPUPercent: 95, MemoryPercent: 40}
	results := []threshold.Result{{Message: "✓ read:median < 1: 0.200 < 1.000", Pass: true}}

	var buf bytes.Buffer
	PrintReport(&buf, Report{Summary: s, Live: live, Host: host, Thresholds: results})
	out := buf.String()

	for _, want := range []string{
		"Latency per operation (ms):",
		"Throughput:        1234.50 ops/sec",
		"Network error: 2",
		"95.0% of 8 cores",
		"WARNING: local CPU is saturated",
		"✓ read:median < 1",
		"Service snapshot omitted: snapshot unavailable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReportNotPerformed(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, Report{})
	if got := strings.TrimSpace(buf.String()); got != "No run performed." {
		t.Errorf("report = %q", got)
	}
}

func TestPrintJSONReport(t *testing.T) {
	s := sampleSummary()
	results := []threshold.Result{
		{Threshold: threshold.Threshold{Raw: "failures:count == 0", Metric: "failures", Aggregate: "count", Operator: "=="}, Actual: 1},
	}

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, Report{Summary: s, Thresholds: results}); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}
	if strings.Contains(buf.String(), "s3cret") {
		t.Error("JSON report leaks the credential")
	}

	var doc struct {
		Summary struct {
			RunID        string             `json:"run_id"`
			FailureCount int                `json:"failure_count"`
			ByKind       map[string]int     `json:"failures_by_kind"`
			Read         map[string]float64 `json:"read"`
			Endpoint     map[string]any     `json:"endpoint"`
			Workers      []map[string]any   `json:"workers"`
		} `json:"summary"`
		DurationMs float64 `json:"duration_ms"`
		Thresholds struct {
			Failed int `json:"failed"`
		} `json:"thresholds"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Summary.RunID != "01HZX" || doc.Summary.FailureCount != 1 {
		t.Errorf("summary = %+v", doc.Summary)
	}
	if doc.Summary.ByKind["connectivity"] != 1 {
		t.Errorf("failures_by_kind = %v", doc.Summary.ByKind)
	}
	if doc.Summary.Read["median_ms"] != 0.2 {
		t.Errorf("read = %v", doc.Summary.Read)
	}
	if doc.Summary.Endpoint["host"] != "cache.local" {
		t.Errorf("endpoint = %v", doc.Summary.Endpoint)
	}
	if len(doc.Summary.Workers) != 2 {
		t.Errorf("workers = %d, want 2", len(doc.Summary.Workers))
	}
	if doc.DurationMs != 1500 {
		t.Errorf("duration_ms = %v, want 1500", doc.DurationMs)
	}
	if doc.Thresholds.Failed != 1 {
		t.Errorf("thresholds.failed = %d, want 1", doc.Thresholds.Failed)
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, Report{Summary: sampleSummary()}); err != nil {
		t.Fatalf("PrintYAMLReport() error = %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	summary, ok := doc["summary"].(map[string]any)
	if !ok {
		t.Fatalf("summary missing: %v", doc)
	}
	if summary["worker_count"] != 2 {
		t.Errorf("worker_count = %v", summary["worker_count"])
	}
	snap, ok := summary["snapshot"].(map[string]any)
	if !ok || snap["redis_version"] != "7.2.4" {
		t.Errorf("snapshot = %v", summary["snapshot"])
	}
}

package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/torosent/kvbench/internal/bench"
	"github.com/torosent/kvbench/internal/endpoint"
	"github.com/torosent/kvbench/internal/hostinfo"
	"github.com/torosent/kvbench/internal/metrics"
	"github.com/torosent/kvbench/internal/threshold"
)

func TestGenerateHTMLReport(t *testing.T) {
	live := &metrics.Stats{
		Ops:       map[metrics.Op]metrics.OpStats{metrics.OpWrite: {Total: 6, P99Ms: 0.75}},
		OpsPerSec: 42,
	}
	results := []threshold.Result{
		{Threshold: threshold.Threshold{Raw: "read:median < 1", Operator: "<", Value: 1}, Actual: 0.2, Pass: true},
		{Threshold: threshold.Threshold{Raw: "failures:count == 0", Operator: "==", Value: 0}, Actual: 1, Pass: false},
	}

	var buf bytes.Buffer
	err := GenerateHTMLReport(&buf, Report{
		Summary:    sampleSummary(),
		Live:       live,
		Host:       &hostinfo.Usage{LogicalCPUs: 4, CPUPercent: 12.5},
		Thresholds: results,
	})
	if err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"cache.local:6379",
		"01HZX",
		"Latency per Worker (ms)",
		"Latency per Operation (ms)",
		"0.750",
		"Thresholds (1/2 Passed)",
		"✗ FAIL",
		"redis_version",
		"7.2.4",
		"of 4 cores",
		"workers-chart",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "s3cret") {
		t.Error("HTML leaks the credential")
	}
}

func TestGenerateHTMLReport_Minimal(t *testing.T) {
	s := sampleSummary()
	s.Snapshot = nil
	s.SnapshotErr = errors.New("snapshot unavailable: timeout")

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, Report{Summary: s}); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	html := buf.String()
	if strings.Contains(html, "Latency per Operation") {
		t.Error("percentile table rendered without live stats")
	}
	if strings.Contains(html, "Thresholds (") {
		t.Error("threshold table rendered without thresholds")
	}
	if !strings.Contains(html, "Unavailable: snapshot unavailable: timeout") {
		t.Error("snapshot error not rendered")
	}
}

func TestGenerateHTMLReport_EscapesHTMLInData(t *testing.T) {
	s := sampleSummary()
	s.Endpoint = endpoint.Descriptor{Host: "cache.local", Port: 6379, Source: "<script>alert('x')</script>.redis"}
	s.Snapshot["motd"] = "<b>hi</b>"

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, Report{Summary: s}); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	html := buf.String()
	if strings.Contains(html, "<script>alert('x')</script>") {
		t.Error("endpoint source not escaped")
	}
	if strings.Contains(html, "<b>hi</b>") {
		t.Error("snapshot value not escaped")
	}
}

func TestGenerateHTMLReport_NotPerformed(t *testing.T) {
	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, Report{Summary: bench.Summary{}}); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No run performed.") {
		t.Error("missing no-run notice")
	}
}

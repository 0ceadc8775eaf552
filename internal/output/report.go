package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/kvbench/internal/bench"
	"github.com/torosent/kvbench/internal/hostinfo"
	"github.com/torosent/kvbench/internal/metrics"
	"github.com/torosent/kvbench/internal/threshold"
)

// Report bundles everything rendered at the end of a run. Only Summary is
// required.
type Report struct {
	Summary    bench.Summary
	Live       *metrics.Stats
	Host       *hostinfo.Usage
	Thresholds []threshold.Result
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	s := r.Summary
	if !s.Performed {
		fmt.Fprintln(w, "No run performed.")
		return
	}

	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", s.RunID)
	fmt.Fprintf(w, "Endpoint:          %s\n", s.Endpoint)
	fmt.Fprintf(w, "Workers:           %d\n", s.WorkerCount)
	fmt.Fprintf(w, "Iterations:        %d per worker (%d completed)\n", s.IterationCount, s.CompletedIterations())
	if n, ok := s.Snapshot.ConnectedClients(); ok {
		fmt.Fprintf(w, "Connected Clients: %d\n", n)
	}
	fmt.Fprintf(w, "Failures:          %d%s\n", s.FailureCount, formatKinds(s.FailuresByKind))
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration)

	fmt.Fprintf(w, "\nAverages: [connect %f ms] [read %f ms] [write %f ms]\n", s.Connect.Mean, s.Read.Mean, s.Write.Mean)

	fmt.Fprintln(w, "\nLatency per worker (ms):")
	fmt.Fprintf(w, "  %-8s %10s %10s %10s %10s\n", "", "min", "median", "mean", "max")
	writeStatRow(w, "connect", s.Connect)
	writeStatRow(w, "read", s.Read)
	writeStatRow(w, "write", s.Write)

	if r.Live != nil {
		fmt.Fprintln(w, "\nLatency per operation (ms):")
		fmt.Fprintf(w, "  %-8s %10s %10s %10s %10s\n", "", "p50", "p90", "p99", "failures")
		for _, op := range metrics.Ops {
			st := r.Live.Ops[op]
			fmt.Fprintf(w, "  %-8s %10.3f %10.3f %10.3f %10d\n", op, st.P50Ms, st.P90Ms, st.P99Ms, st.Failures)
		}
		fmt.Fprintf(w, "Throughput:        %.2f ops/sec\n", r.Live.OpsPerSec)
		if len(r.Live.Errors) > 0 {
			fmt.Fprintln(w, "Errors:")
			names := make([]string, 0, len(r.Live.Errors))
			for name := range r.Live.Errors {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(name), r.Live.Errors[name])
			}
		}
	}

	if r.Host != nil {
		fmt.Fprintln(w, "\nLoad Generator:")
		fmt.Fprintf(w, "  CPU:             %.1f%% of %d cores\n", r.Host.CPUPercent, r.Host.LogicalCPUs)
		fmt.Fprintf(w, "  Memory:          %.1f%% (%d MiB used)\n", r.Host.MemoryPercent, r.Host.MemoryUsed>>20)
		if r.Host.Saturated() {
			fmt.Fprintln(w, "  WARNING: local CPU is saturated; latencies may include client-side queuing")
		}
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, res := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}

	switch {
	case s.Snapshot != nil:
		fmt.Fprintln(w, "\nService Snapshot:")
		for _, key := range s.Snapshot.Keys() {
			fmt.Fprintf(w, "  %s: %s\n", key, s.Snapshot[key])
		}
	case s.SnapshotErr != nil:
		fmt.Fprintf(w, "\nService snapshot omitted: %v\n", s.SnapshotErr)
	}
}

func writeStatRow(w io.Writer, name string, st metrics.Stat) {
	fmt.Fprintf(w, "  %-8s %10.3f %10.3f %10.3f %10.3f\n", name, st.Min, st.Median, st.Mean, st.Max)
}

func formatKinds(byKind map[bench.ErrorKind]int) string {
	if len(byKind) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, kind := range kinds {
		parts[i] = fmt.Sprintf("%s: %d", kind, byKind[bench.ErrorKind(kind)])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// ThresholdResultJSON is the serialized form of a threshold result.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// ThresholdSummary counts passed and failed thresholds.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	ts := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		ts.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			ts.Passed++
		} else {
			ts.Failed++
		}
	}
	return ts
}

type reportDocument struct {
	Summary       bench.Summary     `json:"summary" yaml:"summary"`
	DurationMs    float64           `json:"duration_ms" yaml:"duration_ms"`
	SnapshotError string            `json:"snapshot_error,omitempty" yaml:"snapshot_error,omitempty"`
	Live          *metrics.Stats    `json:"live,omitempty" yaml:"live,omitempty"`
	Host          *hostinfo.Usage   `json:"host,omitempty" yaml:"host,omitempty"`
	Thresholds    *ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

func newReportDocument(r Report) reportDocument {
	doc := reportDocument{
		Summary:    r.Summary,
		DurationMs: float64(r.Summary.Duration.Microseconds()) / 1000,
		Live:       r.Live,
		Host:       r.Host,
		Thresholds: summarizeThresholds(r.Thresholds),
	}
	if r.Summary.SnapshotErr != nil {
		doc.SnapshotError = r.Summary.SnapshotErr.Error()
	}
	return doc
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newReportDocument(r))
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newReportDocument(r)); err != nil {
		return err
	}
	return enc.Close()
}

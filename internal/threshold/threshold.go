// Package threshold evaluates pass/fail assertions against a benchmark summary.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/kvbench/internal/bench"
	"github.com/torosent/kvbench/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // connect, read, write, failures, iterations or ops
	Aggregate string  // e.g. median, mean, p99, count, rate
	Operator  string  // <, <=, >, >=, ==
	Value     float64 // The threshold value to compare against
	Raw       string  // Threshold as written, for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Input is what thresholds are evaluated against. Live is optional; the
// percentile aggregates and ops:rate need it.
type Input struct {
	Summary bench.Summary
	Live    *metrics.Stats
}

// Evaluator evaluates thresholds against a finished run.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against in.
func (e *Evaluator) Evaluate(in Input) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, in))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, in Input) Result {
	actual, err := extractMetricValue(t, in)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: error: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.3f %s %.3f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

var (
	latencyMetrics    = []string{string(metrics.OpConnect), string(metrics.OpRead), string(metrics.OpWrite)}
	latencyAggregates = []string{"min", "median", "mean", "avg", "max", "p50", "p90", "p99"}
	operators         = []string{"<", "<=", ">", ">=", "=="}
)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "read:median < 5"       (per-worker average read latency in ms; min, median, mean, max)
// - "connect:p99 < 20"      (live percentile over every connect in ms; p50, p90, p99)
// - "failures:count == 0"   (failed workers)
// - "failures:rate < 0.01"  (failed workers / workers)
// - "iterations:count >= 1000"
// - "ops:rate > 5000"       (completed reads and writes per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'read:median < 5')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if err := validateAggregate(metric, aggregate); err != nil {
		return Threshold{}, err
	}
	if !slices.Contains(operators, operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

func validateAggregate(metric, aggregate string) error {
	switch {
	case slices.Contains(latencyMetrics, metric):
		if !slices.Contains(latencyAggregates, aggregate) {
			return fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(latencyAggregates, ", "))
		}
	case metric == "failures":
		if aggregate != "count" && aggregate != "rate" {
			return fmt.Errorf("unsupported aggregate %q for failures (use 'count' or 'rate')", aggregate)
		}
	case metric == "iterations":
		if aggregate != "count" {
			return fmt.Errorf("unsupported aggregate %q for iterations (use 'count')", aggregate)
		}
	case metric == "ops":
		if aggregate != "rate" {
			return fmt.Errorf("unsupported aggregate %q for ops (use 'rate')", aggregate)
		}
	default:
		return fmt.Errorf("unsupported metric: %q (supported: connect, read, write, failures, iterations, ops)", metric)
	}
	return nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func extractMetricValue(t Threshold, in Input) (float64, error) {
	if err := validateAggregate(t.Metric, t.Aggregate); err != nil {
		return 0, err
	}
	switch t.Metric {
	case "connect", "read", "write":
		return extractLatencyMetric(metrics.Op(t.Metric), t.Aggregate, in)
	case "failures":
		if t.Aggregate == "rate" {
			return in.Summary.FailureRate(), nil
		}
		return float64(in.Summary.FailureCount), nil
	case "iterations":
		return float64(in.Summary.CompletedIterations()), nil
	case "ops":
		if in.Live == nil {
			return 0, fmt.Errorf("ops:rate needs live metrics")
		}
		return in.Live.OpsPerSec, nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(op metrics.Op, aggregate string, in Input) (float64, error) {
	var stat metrics.Stat
	switch op {
	case metrics.OpConnect:
		stat = in.Summary.Connect
	case metrics.OpRead:
		stat = in.Summary.Read
	case metrics.OpWrite:
		stat = in.Summary.Write
	}

	switch aggregate {
	case "min":
		return stat.Min, nil
	case "median":
		return stat.Median, nil
	case "mean", "avg":
		return stat.Mean, nil
	case "max":
		return stat.Max, nil
	}

	if in.Live == nil {
		return 0, fmt.Errorf("%s:%s needs live metrics", op, aggregate)
	}
	live := in.Live.Ops[op]
	switch aggregate {
	case "p50":
		return live.P50Ms, nil
	case "p90":
		return live.P90Ms, nil
	case "p99":
		return live.P99Ms, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", aggregate, op)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}

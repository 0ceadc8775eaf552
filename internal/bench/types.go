package bench

import (
	"errors"
	"fmt"
	"time"

	"github.com/torosent/kvbench/internal/endpoint"
	"github.com/torosent/kvbench/internal/kv"
	"github.com/torosent/kvbench/internal/metrics"
)

// ErrInvalidParameter is returned when the worker or iteration count is not positive.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrSnapshotUnavailable wraps the reason no service snapshot could be taken.
var ErrSnapshotUnavailable = errors.New("snapshot unavailable")

// ErrorKind classifies why a worker failed.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindConnectivity ErrorKind = "connectivity"
	ErrorKindUnexpected   ErrorKind = "unexpected"
	ErrorKindTimeout      ErrorKind = "timeout"
	ErrorKindCanceled     ErrorKind = "canceled"
)

// WorkerSpec is the immutable assignment handed to one worker.
type WorkerSpec struct {
	ID             int
	IterationCount int
	StartAt        time.Time
	Endpoint       endpoint.Descriptor
	Key            string
}

// WorkerResult is what a worker publishes when it is done.
// len(ReadLatenciesMs) == len(WriteLatenciesMs) == CompletedIterations.
type WorkerResult struct {
	ID                  int           `json:"id" yaml:"id"`
	ConnectLatencyMs    float64       `json:"connect_latency_ms" yaml:"connect_latency_ms"`
	ReadLatenciesMs     []float64     `json:"-" yaml:"-"`
	WriteLatenciesMs    []float64     `json:"-" yaml:"-"`
	CompletedIterations int           `json:"completed_iterations" yaml:"completed_iterations"`
	Failed              bool          `json:"failed" yaml:"failed"`
	Kind                ErrorKind     `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Err                 error         `json:"-" yaml:"-"`
	RunDuration         time.Duration `json:"-" yaml:"-"`
	Snapshot            kv.Snapshot   `json:"-" yaml:"-"`
}

// AverageReadMs is the mean read latency, or 0 when no iteration completed.
func (r WorkerResult) AverageReadMs() float64 {
	if r.CompletedIterations == 0 {
		return 0
	}
	return metrics.Mean(r.ReadLatenciesMs)
}

// AverageWriteMs is the mean write latency, or 0 when no iteration completed.
func (r WorkerResult) AverageWriteMs() float64 {
	if r.CompletedIterations == 0 {
		return 0
	}
	return metrics.Mean(r.WriteLatenciesMs)
}

func (r *WorkerResult) fail(kind ErrorKind, err error) {
	if r.Failed {
		return
	}
	r.Failed = true
	r.Kind = kind
	r.Err = err
}

// WorkerError describes a failed worker for logging.
type WorkerError struct {
	ID   int
	Kind ErrorKind
	Err  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("connection #%d: %s: %v", e.ID, e.Kind, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Summary is the aggregated outcome of one benchmark run.
type Summary struct {
	RunID          string              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Performed      bool                `json:"performed" yaml:"performed"`
	Endpoint       endpoint.Descriptor `json:"endpoint" yaml:"endpoint"`
	WorkerCount    int                 `json:"worker_count" yaml:"worker_count"`
	IterationCount int                 `json:"iteration_count" yaml:"iteration_count"`
	Connect        metrics.Stat        `json:"connect" yaml:"connect"`
	Read           metrics.Stat        `json:"read" yaml:"read"`
	Write          metrics.Stat        `json:"write" yaml:"write"`
	FailureCount   int                 `json:"failure_count" yaml:"failure_count"`
	FailuresByKind map[ErrorKind]int   `json:"failures_by_kind,omitempty" yaml:"failures_by_kind,omitempty"`
	Results        []WorkerResult      `json:"workers,omitempty" yaml:"workers,omitempty"`
	Snapshot       kv.Snapshot         `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	SnapshotErr    error               `json:"-" yaml:"-"`
	Duration       time.Duration       `json:"-" yaml:"-"`
}

// CompletedIterations sums completed iterations over all workers.
func (s Summary) CompletedIterations() int {
	total := 0
	for _, r := range s.Results {
		total += r.CompletedIterations
	}
	return total
}

// FailureRate is FailureCount divided by WorkerCount.
func (s Summary) FailureRate() float64 {
	if s.WorkerCount == 0 {
		return 0
	}
	return float64(s.FailureCount) / float64(s.WorkerCount)
}

// Aggregate computes the connect, read and write statistics and the failure
// counts over per-worker values. Every result contributes one sample per
// metric; a worker that completed no iterations contributes 0 to the read and
// write averages and a worker that never connected contributes 0 to connect.
func Aggregate(results []WorkerResult) Summary {
	connect := make([]float64, 0, len(results))
	reads := make([]float64, 0, len(results))
	writes := make([]float64, 0, len(results))
	s := Summary{Results: results}
	for _, r := range results {
		connect = append(connect, r.ConnectLatencyMs)
		reads = append(reads, r.AverageReadMs())
		writes = append(writes, r.AverageWriteMs())
		if r.Failed {
			s.FailureCount++
			if s.FailuresByKind == nil {
				s.FailuresByKind = make(map[ErrorKind]int)
			}
			s.FailuresByKind[r.Kind]++
		}
	}
	s.Connect = metrics.Summarize(connect)
	s.Read = metrics.Summarize(reads)
	s.Write = metrics.Summarize(writes)
	return s
}

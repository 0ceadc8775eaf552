package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Op names a measured operation.
type Op string

const (
	OpConnect Op = "connect"
	OpRead    Op = "read"
	OpWrite   Op = "write"
)

// Ops lists the measured operations in report order.
var Ops = []Op{OpConnect, OpRead, OpWrite}

// Recorder receives live measurements from workers. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RecordOp(op Op, latency time.Duration, err error)
	WorkerConnected(id int)
	WorkerFinished(id int, failed bool)
}

type opHistogram struct {
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
}

// Collector records per-operation metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	ops          map[Op]*opHistogram
	errorsByType map[string]int64
	connected    int64
	finished     int64
	failed       int64
	start        time.Time
}

// OpStats is the live aggregate for one operation.
type OpStats struct {
	Total     int64         `json:"total" yaml:"total"`
	Successes int64         `json:"successes" yaml:"successes"`
	Failures  int64         `json:"failures" yaml:"failures"`
	Min       time.Duration `json:"-" yaml:"-"`
	Max       time.Duration `json:"-" yaml:"-"`
	Mean      time.Duration `json:"-" yaml:"-"`
	P50       time.Duration `json:"-" yaml:"-"`
	P90       time.Duration `json:"-" yaml:"-"`
	P99       time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	MinMs  float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs  float64 `json:"max_ms" yaml:"max_ms"`
	MeanMs float64 `json:"mean_ms" yaml:"mean_ms"`
	P50Ms  float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms  float64 `json:"p90_ms" yaml:"p90_ms"`
	P99Ms  float64 `json:"p99_ms" yaml:"p99_ms"`
}

// Stats represents the live aggregated metrics.
type Stats struct {
	Ops              map[Op]OpStats `json:"ops" yaml:"ops"`
	ConnectedWorkers int64          `json:"connected_workers" yaml:"connected_workers"`
	FinishedWorkers  int64          `json:"finished_workers" yaml:"finished_workers"`
	FailedWorkers    int64          `json:"failed_workers" yaml:"failed_workers"`
	Elapsed          time.Duration  `json:"-" yaml:"-"`
	OpsPerSec        float64        `json:"ops_per_sec" yaml:"ops_per_sec"`
	Errors           map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Completed returns the number of successful read and write operations.
func (s Stats) Completed() int64 {
	return s.Ops[OpRead].Successes + s.Ops[OpWrite].Successes
}

func NewCollector() *Collector {
	c := &Collector{
		ops:          make(map[Op]*opHistogram, len(Ops)),
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
	for _, op := range Ops {
		c.ops[op] = newOpHistogram()
	}
	return c
}

func newOpHistogram() *opHistogram {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &opHistogram{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

// Start resets the reference time used for throughput.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// RecordOp records a single operation's latency and error state.
func (c *Collector) RecordOp(op Op, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.ops[op]
	if !ok {
		h = newOpHistogram()
		c.ops[op] = h
	}

	if err != nil {
		h.failures++
		errorType := fmt.Sprintf("%T", err)
		if len(errorType) > 30 {
			errorType = errorType[len(errorType)-30:]
		}
		c.errorsByType[errorType]++
		return
	}

	h.successes++
	if latency > 0 {
		us := latency.Microseconds()
		if us < h.hist.LowestTrackableValue() {
			us = h.hist.LowestTrackableValue()
		}
		if us > h.hist.HighestTrackableValue() {
			us = h.hist.HighestTrackableValue()
		}
		_ = h.hist.RecordValue(us)
	}
	h.sumLatency += latency
	if h.minLatency == 0 || latency < h.minLatency {
		h.minLatency = latency
	}
	if latency > h.maxLatency {
		h.maxLatency = latency
	}
}

func (c *Collector) WorkerConnected(int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected++
}

func (c *Collector) WorkerFinished(_ int, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished++
	if failed {
		c.failed++
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	stats := Stats{
		Ops:              make(map[Op]OpStats, len(c.ops)),
		ConnectedWorkers: c.connected,
		FinishedWorkers:  c.finished,
		FailedWorkers:    c.failed,
		Elapsed:          elapsed,
	}

	var completed int64
	for op, h := range c.ops {
		s := OpStats{
			Total:     h.successes + h.failures,
			Successes: h.successes,
			Failures:  h.failures,
			Min:       h.minLatency,
			Max:       h.maxLatency,
		}
		if h.successes > 0 {
			s.Mean = time.Duration(int64(h.sumLatency) / h.successes)
		}
		if h.hist.TotalCount() > 0 {
			s.P50 = time.Duration(h.hist.ValueAtQuantile(50)) * time.Microsecond
			s.P90 = time.Duration(h.hist.ValueAtQuantile(90)) * time.Microsecond
			s.P99 = time.Duration(h.hist.ValueAtQuantile(99)) * time.Microsecond
		}
		s.MinMs = toMs(s.Min)
		s.MaxMs = toMs(s.Max)
		s.MeanMs = toMs(s.Mean)
		s.P50Ms = toMs(s.P50)
		s.P90Ms = toMs(s.P90)
		s.P99Ms = toMs(s.P99)
		stats.Ops[op] = s
		if op != OpConnect {
			completed += h.successes
		}
	}

	if elapsed > 0 && completed > 0 {
		stats.OpsPerSec = float64(completed) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// multiRecorder fans a measurement out to several recorders.
type multiRecorder []Recorder

// Multi combines recorders; nil entries are skipped.
func Multi(recorders ...Recorder) Recorder {
	var m multiRecorder
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multiRecorder) RecordOp(op Op, latency time.Duration, err error) {
	for _, r := range m {
		r.RecordOp(op, latency, err)
	}
}

func (m multiRecorder) WorkerConnected(id int) {
	for _, r := range m {
		r.WorkerConnected(id)
	}
}

func (m multiRecorder) WorkerFinished(id int, failed bool) {
	for _, r := range m {
		r.WorkerFinished(id, failed)
	}
}

package metrics_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/torosent/kvbench/internal/metrics"
)

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	// Record deterministic latencies.
	c.RecordOp(metrics.OpRead, 10*time.Millisecond, nil)
	c.RecordOp(metrics.OpRead, 20*time.Millisecond, nil)
	c.RecordOp(metrics.OpRead, 30*time.Millisecond, nil)
	c.RecordOp(metrics.OpRead, 40*time.Millisecond, nil)
	c.RecordOp(metrics.OpRead, 50*time.Millisecond, nil)

	stats := c.Stats()
	read := stats.Ops[metrics.OpRead]

	if read.Total != 5 {
		t.Errorf("expected total 5, got %d", read.Total)
	}
	if read.Successes != 5 {
		t.Errorf("expected successes 5, got %d", read.Successes)
	}
	if read.Failures != 0 {
		t.Errorf("expected failures 0, got %d", read.Failures)
	}
	if read.Min != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", read.Min)
	}
	if read.Max != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", read.Max)
	}
	if read.Mean != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", read.Mean)
	}
	if w := stats.Ops[metrics.OpWrite]; w.Total != 0 {
		t.Errorf("expected no writes, got %d", w.Total)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.RecordOp(metrics.OpWrite, time.Duration(i)*time.Millisecond, nil)
	}

	w := c.Stats().Ops[metrics.OpWrite]

	if w.P50 < 49*time.Millisecond || w.P50 > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", w.P50)
	}
	if w.P90 < 89*time.Millisecond || w.P90 > 91*time.Millisecond {
		t.Errorf("expected P90 ~90ms, got %s", w.P90)
	}
	if w.P99 < 98*time.Millisecond || w.P99 > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", w.P99)
	}
}

func TestFailuresAreNotSampled(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordOp(metrics.OpConnect, 5*time.Millisecond, nil)
	c.RecordOp(metrics.OpConnect, 900*time.Millisecond, errors.New("refused"))

	conn := c.Stats().Ops[metrics.OpConnect]
	if conn.Failures != 1 || conn.Successes != 1 {
		t.Fatalf("successes/failures = %d/%d, want 1/1", conn.Successes, conn.Failures)
	}
	if conn.Max != 5*time.Millisecond {
		t.Errorf("failed op leaked into latency: max = %s", conn.Max)
	}
	if len(c.Stats().Errors) != 1 {
		t.Errorf("expected one error type, got %v", c.Stats().Errors)
	}
}

func TestWorkerCounters(t *testing.T) {
	c := metrics.NewCollector()
	c.WorkerConnected(0)
	c.WorkerConnected(1)
	c.WorkerFinished(0, false)
	c.WorkerFinished(1, true)
	c.WorkerFinished(2, true)

	stats := c.Stats()
	if stats.ConnectedWorkers != 2 || stats.FinishedWorkers != 3 || stats.FailedWorkers != 2 {
		t.Errorf("counters = %d/%d/%d, want 2/3/2", stats.ConnectedWorkers, stats.FinishedWorkers, stats.FailedWorkers)
	}
}

func TestCollectorConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordOp(metrics.OpRead, time.Millisecond, nil)
				c.RecordOp(metrics.OpWrite, time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if got := stats.Completed(); got != 1600 {
		t.Errorf("Completed() = %d, want 1600", got)
	}
}

func TestStatsJSONSchema(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordOp(metrics.OpRead, 15*time.Millisecond, nil)

	data, err := json.Marshal(c.Stats())
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	ops, ok := parsed["ops"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing ops object: %s", data)
	}
	read, ok := ops["read"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing read op: %s", data)
	}
	if read["max_ms"] != 15.0 {
		t.Errorf("max_ms = %v, want 15", read["max_ms"])
	}
}

func TestMultiSkipsNil(t *testing.T) {
	a := metrics.NewCollector()
	b := metrics.NewCollector()
	m := metrics.Multi(a, nil, b)
	m.RecordOp(metrics.OpRead, time.Millisecond, nil)
	m.WorkerConnected(0)
	m.WorkerFinished(0, false)

	for _, c := range []*metrics.Collector{a, b} {
		s := c.Stats()
		if s.Ops[metrics.OpRead].Total != 1 || s.ConnectedWorkers != 1 || s.FinishedWorkers != 1 {
			t.Errorf("fan-out missed a recorder: %+v", s)
		}
	}
}

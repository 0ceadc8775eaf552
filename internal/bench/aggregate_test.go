package bench_test

import (
	"testing"

	"github.com/torosent/kvbench/internal/bench"
)

func healthy(id int, connect float64, reads, writes []float64) bench.WorkerResult {
	return bench.WorkerResult{
		ID:                  id,
		ConnectLatencyMs:    connect,
		ReadLatenciesMs:     reads,
		WriteLatenciesMs:    writes,
		CompletedIterations: len(reads),
	}
}

func TestAggregateFixedLatencies(t *testing.T) {
	results := []bench.WorkerResult{
		healthy(0, 10, []float64{2, 2, 2}, []float64{3, 3, 3}),
		healthy(1, 10, []float64{2, 2, 2}, []float64{3, 3, 3}),
		healthy(2, 10, []float64{2, 2, 2}, []float64{3, 3, 3}),
	}
	s := bench.Aggregate(results)

	tests := []struct {
		name string
		got  [4]float64
		want float64
	}{
		{"connect", [4]float64{s.Connect.Min, s.Connect.Median, s.Connect.Mean, s.Connect.Max}, 10},
		{"read", [4]float64{s.Read.Min, s.Read.Median, s.Read.Mean, s.Read.Max}, 2},
		{"write", [4]float64{s.Write.Min, s.Write.Median, s.Write.Mean, s.Write.Max}, 3},
	}
	for _, tt := range tests {
		for _, v := range tt.got {
			if v != tt.want {
				t.Errorf("%s stats = %v, want all %v", tt.name, tt.got, tt.want)
				break
			}
		}
	}
	if s.FailureCount != 0 || s.FailuresByKind != nil {
		t.Errorf("failures = %d %v, want none", s.FailureCount, s.FailuresByKind)
	}
}

func TestAggregateMedianAndMean(t *testing.T) {
	odd := bench.Aggregate([]bench.WorkerResult{
		healthy(0, 5, nil, nil),
		healthy(1, 1, nil, nil),
		healthy(2, 3, nil, nil),
	})
	if odd.Connect.Median != 3 {
		t.Errorf("median of [5 1 3] = %v, want 3", odd.Connect.Median)
	}
	if odd.Connect.Mean != 3 {
		t.Errorf("mean of [5 1 3] = %v, want 3", odd.Connect.Mean)
	}

	even := bench.Aggregate([]bench.WorkerResult{
		healthy(0, 5, nil, nil),
		healthy(1, 1, nil, nil),
		healthy(2, 3, nil, nil),
		healthy(3, 7, nil, nil),
	})
	if even.Connect.Median != 5 {
		t.Errorf("median of [5 1 3 7] = %v, want 5", even.Connect.Median)
	}
	if even.Connect.Min != 1 || even.Connect.Max != 7 {
		t.Errorf("min/max = %v/%v, want 1/7", even.Connect.Min, even.Connect.Max)
	}
}

func TestAggregateCountsZeroIterationWorkers(t *testing.T) {
	results := []bench.WorkerResult{
		healthy(0, 4, []float64{2, 4}, []float64{6, 6}),
		{ID: 1, Failed: true, Kind: bench.ErrorKindConnectivity},
	}
	s := bench.Aggregate(results)

	if s.Read.Count != 2 || s.Read.Mean != 1.5 {
		t.Errorf("read = %+v, want count 2 mean 1.5", s.Read)
	}
	if s.Write.Mean != 3 || s.Write.Min != 0 {
		t.Errorf("write = %+v, want mean 3 min 0", s.Write)
	}
	if s.Connect.Mean != 2 {
		t.Errorf("connect mean = %v, want 2", s.Connect.Mean)
	}
	if s.FailureCount != 1 || s.FailuresByKind[bench.ErrorKindConnectivity] != 1 {
		t.Errorf("failures = %d %v", s.FailureCount, s.FailuresByKind)
	}
}

func TestSummaryFailureRate(t *testing.T) {
	s := bench.Summary{WorkerCount: 4, FailureCount: 1}
	if got := s.FailureRate(); got != 0.25 {
		t.Errorf("FailureRate() = %v, want 0.25", got)
	}
	if got := (bench.Summary{}).FailureRate(); got != 0 {
		t.Errorf("FailureRate() of empty = %v, want 0", got)
	}
}

// Package metrics provides latency statistics and live metrics collection for
// key-value benchmarks.
//
// Two layers live here. [Summarize] computes the exact per-run statistics
// (min, median, mean, max) over per-worker values once every worker has
// published its result. The median uses the lower-middle rule: on an even
// count it returns sorted[n/2], never an interpolated value.
//
// # Collector
//
// [Collector] is the live, observational view used by the progress reporter
// and the dashboard while a run is in flight:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	collector.RecordOp(metrics.OpRead, latency, err)
//	stats := collector.Stats()
//
// It keeps an HDR histogram per operation, so percentiles are approximate
// (three significant figures), unlike [Summarize].
//
// # Recorders
//
// Workers report into a [Recorder]. [Collector] and [Prometheus] both
// implement it; [Multi] fans out to several recorders.
package metrics

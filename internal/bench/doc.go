// Package bench runs the synchronized key-value latency benchmark.
//
// A [Coordinator] launches one [Worker] goroutine per connection. Every
// worker sleeps until the shared start instant, connects, then performs a
// fixed number of GET/INCR pairs against its own key while timing each call.
// Workers never share mutable state: each publishes exactly one
// [WorkerResult] on a buffered channel and the coordinator aggregates them
// into a [Summary].
//
// # Basic Usage
//
//	c := bench.New(bench.Options{
//		Dialer: kv.RedisDialer{DialTimeout: 5 * time.Second},
//		Source: endpoint.Static{Descriptor: ep},
//	})
//	summary, err := c.Benchmark(ctx, 50, 1000)
//
// # Failures
//
// A worker that cannot connect, loses its connection, receives an unexpected
// reply or panics is marked failed and tagged with an [ErrorKind]. Its
// completed samples are kept. Worker failures never abort the run; only
// invalid parameters ([ErrInvalidParameter]) and endpoint configuration
// problems make [Coordinator.Benchmark] return an error.
package bench

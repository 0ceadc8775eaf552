package bench

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/kvbench/internal/endpoint"
	"github.com/torosent/kvbench/internal/kv"
	"github.com/torosent/kvbench/internal/metrics"
)

// Source provides the endpoint to benchmark. ok is false when the operator
// declined to pick one, in which case no run is performed.
type Source interface {
	Select(ctx context.Context) (ep endpoint.Descriptor, ok bool, err error)
}

// Observer receives per-worker lifecycle events from many goroutines.
type Observer interface {
	Connected(id int, latency time.Duration)
	Finished(id int, elapsed time.Duration, failed bool)
}

// CountdownReporter is told how long remains before the synchronized start.
type CountdownReporter interface {
	Remaining(d time.Duration)
}

// FailureLogger logs failed workers.
type FailureLogger interface {
	LogFailure(err error)
}

// Options configure the Coordinator and its workers.
type Options struct {
	Dialer kv.Dialer // connection factory (required)
	Source Source    // endpoint provider (required)

	SpawnAllowance    time.Duration // start delay per worker (default 2ms, negative for none)
	JoinTimeout       time.Duration // max time workers may run after the start (0 waits forever)
	CountdownInterval time.Duration // how often Countdown is called before the start
	KeyPrefix         string        // namespace of worker keys (default "kvbench")
	OpRate            int           // per-worker GET/INCR pairs per second (0 means unlimited)
	SkipFailedInfo    bool          // failed workers do not fetch a snapshot

	Recorder  metrics.Recorder  // live measurements (optional)
	Observer  Observer          // per-worker events (optional)
	Countdown CountdownReporter // barrier countdown (optional)
	Logger    FailureLogger     // failed workers (optional)
	Tracer    trace.Tracer      // op spans (optional)

	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	RunID          func() string               // optional injection for tests
}

const (
	defaultSpawnAllowance = 2 * time.Millisecond
	defaultKeyPrefix      = "kvbench"
)

func (o *Options) normalize() {
	if o.SpawnAllowance < 0 {
		o.SpawnAllowance = 0
	} else if o.SpawnAllowance == 0 {
		o.SpawnAllowance = defaultSpawnAllowance
	}
	if o.JoinTimeout < 0 {
		o.JoinTimeout = 0
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = defaultKeyPrefix
	}
	if o.OpRate < 0 {
		o.OpRate = 0
	}
	if o.Recorder == nil {
		o.Recorder = metrics.Multi()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("kvbench")
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
	if o.RunID == nil {
		o.RunID = func() string { return ulid.Make().String() }
	}
}

type nopObserver struct{}

func (nopObserver) Connected(int, time.Duration)       {}
func (nopObserver) Finished(int, time.Duration, bool) {}

package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/torosent/kvbench/internal/endpoint"
	"github.com/torosent/kvbench/internal/kv"
	"github.com/torosent/kvbench/internal/pool"
	"github.com/torosent/kvbench/internal/tracing"
)

// Coordinator launches workers, waits for them and aggregates their results.
type Coordinator struct {
	opt Options
}

func New(opt Options) *Coordinator {
	opt.normalize()
	return &Coordinator{opt: opt}
}

// CheckCounts returns an error wrapping ErrInvalidParameter unless both
// counts are positive. Callers that create resources before Benchmark, such
// as a metrics listener, check first.
func CheckCounts(workerCount, iterationCount int) error {
	if workerCount <= 0 || iterationCount <= 0 {
		return fmt.Errorf("%w: worker count (%d) and iteration count (%d) must be positive",
			ErrInvalidParameter, workerCount, iterationCount)
	}
	return nil
}

// Benchmark runs workerCount workers of iterationCount GET/INCR pairs each.
//
// It returns an error wrapping ErrInvalidParameter for non-positive counts,
// before any endpoint is selected or connection opened, and the Source's
// error (typically *endpoint.ConfigurationError) when no usable endpoint can
// be obtained. A declined selection yields Summary{Performed: false} and a nil
// error. Worker failures are reported in the Summary only.
func (c *Coordinator) Benchmark(ctx context.Context, workerCount, iterationCount int) (Summary, error) {
	if err := CheckCounts(workerCount, iterationCount); err != nil {
		return Summary{}, err
	}
	if c.opt.Dialer == nil || c.opt.Source == nil {
		return Summary{}, errors.New("bench: dialer and endpoint source are required")
	}

	ep, ok, err := c.opt.Source.Select(ctx)
	if err != nil {
		return Summary{}, err
	}
	if !ok {
		return Summary{Performed: false}, nil
	}
	if err := ep.Validate(); err != nil {
		return Summary{}, err
	}

	runID := c.opt.RunID()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conns := pool.NewConnectionPool[kv.Conn](1)
	defer conns.Close()
	worker := &Worker{
		opt:  c.opt,
		park: func(conn kv.Conn) { _ = conns.Put(ep.Addr(), conn) },
	}

	start := time.Now()
	startAt := start.Add(time.Duration(workerCount) * c.opt.SpawnAllowance)
	results := make(chan WorkerResult, workerCount)
	for id := 0; id < workerCount; id++ {
		spec := WorkerSpec{
			ID:             id,
			IterationCount: iterationCount,
			StartAt:        startAt,
			Endpoint:       ep,
			Key:            fmt.Sprintf("%s:%s:%d", c.opt.KeyPrefix, runID, id),
		}
		go func() {
			results <- worker.Run(runCtx, spec)
		}()
	}

	countdownCtx, stopCountdown := context.WithCancel(runCtx)
	countdownDone := make(chan struct{})
	go func() {
		defer close(countdownDone)
		c.countdown(countdownCtx, startAt)
	}()

	collected := c.join(runCtx, cancel, results, workerCount, startAt)
	stopCountdown()
	<-countdownDone

	summary := Aggregate(collected)
	summary.RunID = runID
	summary.Performed = true
	summary.Endpoint = ep
	summary.WorkerCount = workerCount
	summary.IterationCount = iterationCount
	summary.Snapshot, summary.SnapshotErr = c.snapshot(ctx, conns, ep)
	summary.Duration = time.Since(start)
	return summary, nil
}

// join collects one result per worker, ordered by worker id. When the join
// timeout expires the run is canceled and every worker that has not
// published gets a synthesized timeout result.
func (c *Coordinator) join(ctx context.Context, cancel context.CancelFunc, results <-chan WorkerResult, n int, startAt time.Time) []WorkerResult {
	var timeout <-chan time.Time
	if c.opt.JoinTimeout > 0 {
		timer := time.NewTimer(time.Until(startAt) + c.opt.JoinTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	collected := make([]WorkerResult, n)
	published := make([]bool, n)
	remaining := n
	for remaining > 0 {
		select {
		case r := <-results:
			if r.ID < 0 || r.ID >= n || published[r.ID] {
				continue
			}
			collected[r.ID] = r
			published[r.ID] = true
			remaining--
		case <-timeout:
			cancel()
			err := fmt.Errorf("did not finish within %s of the start", c.opt.JoinTimeout)
			for id := range collected {
				if published[id] {
					continue
				}
				collected[id] = WorkerResult{ID: id, Failed: true, Kind: ErrorKindTimeout, Err: err}
				if c.opt.Logger != nil {
					c.opt.Logger.LogFailure(&WorkerError{ID: id, Kind: ErrorKindTimeout, Err: err})
				}
			}
			return collected
		}
	}
	return collected
}

func (c *Coordinator) countdown(ctx context.Context, startAt time.Time) {
	if c.opt.Countdown == nil || c.opt.CountdownInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opt.CountdownInterval)
	defer ticker.Stop()
	for {
		remaining := time.Until(startAt)
		if remaining <= 0 {
			c.opt.Countdown.Remaining(0)
			return
		}
		c.opt.Countdown.Remaining(remaining)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// snapshot fetches the service status through a connection parked by a
// worker, or a fresh one when none survived.
func (c *Coordinator) snapshot(ctx context.Context, conns *pool.ConnectionPool[kv.Conn], ep endpoint.Descriptor) (kv.Snapshot, error) {
	conn, ok := conns.Take(ep.Addr())
	if !ok {
		var err error
		conn, err = c.opt.Dialer.Dial(ctx, ep)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
		}
	}
	defer conn.Close()

	infoCtx, span := tracing.StartOpSpan(ctx, c.opt.Tracer, "info", -1, ep.Addr())
	snap, err := conn.Info(infoCtx)
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	return snap, nil
}

package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/torosent/kvbench/internal/kv"
	"github.com/torosent/kvbench/internal/metrics"
	"github.com/torosent/kvbench/internal/tracing"
)

// Worker drives one connection through a WorkerSpec.
type Worker struct {
	opt Options
	// park takes over a healthy connection after the run; nil closes it.
	park func(kv.Conn)
}

// NewWorker creates a Worker. Only the Dialer, observation and pacing fields
// of opt are used.
func NewWorker(opt Options) *Worker {
	opt.normalize()
	return &Worker{opt: opt}
}

// Run executes spec and always returns a result; errors of every kind are
// recorded on the result rather than returned.
func (w *Worker) Run(ctx context.Context, spec WorkerSpec) WorkerResult {
	res := WorkerResult{
		ID:               spec.ID,
		ReadLatenciesMs:  make([]float64, 0, spec.IterationCount),
		WriteLatenciesMs: make([]float64, 0, spec.IterationCount),
	}

	if err := sleepUntil(ctx, spec.StartAt); err != nil {
		res.fail(ErrorKindCanceled, err)
		w.report(spec, &res)
		return res
	}

	began := time.Now()
	conn := w.exercise(ctx, spec, &res)
	res.RunDuration = time.Since(began)

	if conn != nil {
		w.snapshot(ctx, spec, conn, &res)
		w.release(conn, res.Failed)
	}
	w.report(spec, &res)
	return res
}

// sleepUntil blocks until t. Timers never fire early, so the worker wakes at
// or after t.
func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exercise connects and runs the iterations. The returned connection, if
// any, is still open.
func (w *Worker) exercise(ctx context.Context, spec WorkerSpec, res *WorkerResult) (conn kv.Conn) {
	defer func() {
		if r := recover(); r != nil {
			res.fail(ErrorKindUnexpected, fmt.Errorf("panic: %v", r))
		}
	}()

	conn, err := w.connect(ctx, spec, res)
	if err != nil {
		kind := ErrorKindConnectivity
		if ctx.Err() != nil {
			kind = ErrorKindCanceled
		}
		res.fail(kind, err)
		return nil
	}

	limiter := w.opt.LimiterFactory(w.opt.OpRate)
	for i := 0; i < spec.IterationCount; i++ {
		if err := limiter.Wait(ctx); err != nil {
			res.fail(ErrorKindCanceled, err)
			return conn
		}

		readMs, err := w.timeOp(ctx, spec, metrics.OpRead, "get", func(ctx context.Context) error {
			_, _, err := conn.Get(ctx, spec.Key)
			return err
		})
		if err != nil {
			res.fail(classify(ctx, err), err)
			return conn
		}

		writeMs, err := w.timeOp(ctx, spec, metrics.OpWrite, "incr", func(ctx context.Context) error {
			_, err := conn.Incr(ctx, spec.Key)
			return err
		})
		if err != nil {
			res.fail(classify(ctx, err), err)
			return conn
		}

		res.ReadLatenciesMs = append(res.ReadLatenciesMs, readMs)
		res.WriteLatenciesMs = append(res.WriteLatenciesMs, writeMs)
		res.CompletedIterations++
	}
	return conn
}

func (w *Worker) connect(ctx context.Context, spec WorkerSpec, res *WorkerResult) (kv.Conn, error) {
	dialCtx, span := tracing.StartOpSpan(ctx, w.opt.Tracer, "connect", spec.ID, spec.Endpoint.Addr())
	start := time.Now()
	conn, err := w.opt.Dialer.Dial(dialCtx, spec.Endpoint)
	latency := time.Since(start)
	tracing.EndSpan(span, err)
	w.opt.Recorder.RecordOp(metrics.OpConnect, latency, err)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("dialer returned no connection")
	}

	res.ConnectLatencyMs = toMs(latency)
	w.opt.Recorder.WorkerConnected(spec.ID)
	w.opt.Observer.Connected(spec.ID, latency)
	return conn, nil
}

func (w *Worker) timeOp(ctx context.Context, spec WorkerSpec, op metrics.Op, name string, fn func(context.Context) error) (float64, error) {
	opCtx, span := tracing.StartOpSpan(ctx, w.opt.Tracer, name, spec.ID, spec.Endpoint.Addr())
	start := time.Now()
	err := fn(opCtx)
	latency := time.Since(start)
	tracing.EndSpan(span, err)
	w.opt.Recorder.RecordOp(op, latency, err)
	return toMs(latency), err
}

// snapshot fetches the service status through the worker's own connection.
func (w *Worker) snapshot(ctx context.Context, spec WorkerSpec, conn kv.Conn, res *WorkerResult) {
	if res.Failed && w.opt.SkipFailedInfo {
		return
	}
	if ctx.Err() != nil {
		return
	}
	// Snapshot failures are not worker failures.
	defer func() { _ = recover() }()

	infoCtx, span := tracing.StartOpSpan(ctx, w.opt.Tracer, "info", spec.ID, spec.Endpoint.Addr())
	snap, err := conn.Info(infoCtx)
	tracing.EndSpan(span, err)
	if err == nil {
		res.Snapshot = snap
	}
}

func (w *Worker) release(conn kv.Conn, failed bool) {
	if w.park != nil && !failed {
		w.park(conn)
		return
	}
	_ = conn.Close()
}

func (w *Worker) report(spec WorkerSpec, res *WorkerResult) {
	w.opt.Recorder.WorkerFinished(spec.ID, res.Failed)
	w.opt.Observer.Finished(spec.ID, res.RunDuration, res.Failed)
	if res.Failed && w.opt.Logger != nil {
		w.opt.Logger.LogFailure(&WorkerError{ID: spec.ID, Kind: res.Kind, Err: res.Err})
	}
}

// classify maps an operation error to an ErrorKind.
func classify(ctx context.Context, err error) ErrorKind {
	switch {
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return ErrorKindCanceled
	case kv.IsConnectivity(err):
		return ErrorKindConnectivity
	case errors.Is(err, context.DeadlineExceeded):
		// Per-operation timeout from the client.
		return ErrorKindTimeout
	default:
		return ErrorKindUnexpected
	}
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

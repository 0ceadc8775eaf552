package bench_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/torosent/kvbench/internal/bench"
	"github.com/torosent/kvbench/internal/endpoint"
	"github.com/torosent/kvbench/internal/kv"
)

var testEndpoint = endpoint.Descriptor{Host: "127.0.0.1", Port: 6379}

// fakeDialer hands out fakeConns after an optional delay.
type fakeDialer struct {
	delay     time.Duration
	failFirst int64 // number of initial dials that fail
	conn      fakeConn

	dials   atomic.Int64
	mu      sync.Mutex
	keys    map[string]int
	dialAts []time.Time
}

func (d *fakeDialer) Dial(ctx context.Context, ep endpoint.Descriptor) (kv.Conn, error) {
	n := d.dials.Add(1)
	d.mu.Lock()
	d.dialAts = append(d.dialAts, time.Now())
	d.mu.Unlock()
	if err := sleepCtx(ctx, d.delay); err != nil {
		return nil, err
	}
	if n <= d.failFirst {
		return nil, &kv.ConnectError{Addr: ep.Addr(), Err: syscall.ECONNREFUSED}
	}
	c := d.conn
	c.dialer = d
	return &c, nil
}

func (d *fakeDialer) recordKey(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys == nil {
		d.keys = make(map[string]int)
	}
	d.keys[key]++
}

func (d *fakeDialer) keyCounts() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.keys))
	for k, v := range d.keys {
		out[k] = v
	}
	return out
}

func (d *fakeDialer) firstDial() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.dialAts) == 0 {
		return time.Time{}
	}
	first := d.dialAts[0]
	for _, t := range d.dialAts[1:] {
		if t.Before(first) {
			first = t
		}
	}
	return first
}

// fakeConn simulates a service connection with fixed latencies.
type fakeConn struct {
	getDelay   time.Duration
	incrDelay  time.Duration
	incrErr    error
	incrErrAt  int // incr call number (1-based) from which incrErr is returned
	panicOnGet bool
	infoErr    error

	dialer *fakeDialer
	incrs  int
	closed bool
}

func (c *fakeConn) Get(ctx context.Context, key string) (string, bool, error) {
	if c.panicOnGet {
		panic("boom")
	}
	if c.dialer != nil {
		c.dialer.recordKey(key)
	}
	if err := sleepCtx(ctx, c.getDelay); err != nil {
		return "", false, err
	}
	return "", false, nil
}

func (c *fakeConn) Incr(ctx context.Context, key string) (int64, error) {
	c.incrs++
	if c.incrErr != nil && c.incrs >= c.incrErrAt {
		return 0, c.incrErr
	}
	if err := sleepCtx(ctx, c.incrDelay); err != nil {
		return 0, err
	}
	return int64(c.incrs), nil
}

func (c *fakeConn) Info(context.Context) (kv.Snapshot, error) {
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	return kv.Snapshot{"connected_clients": "4", "redis_version": "7.2.4"}, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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

// countingSource wraps a source and counts selections.
type countingSource struct {
	inner bench.Source
	calls atomic.Int64
}

func (s *countingSource) Select(ctx context.Context) (endpoint.Descriptor, bool, error) {
	s.calls.Add(1)
	return s.inner.Select(ctx)
}

type declinedSource struct{}

func (declinedSource) Select(context.Context) (endpoint.Descriptor, bool, error) {
	return endpoint.Descriptor{}, false, nil
}

type errSource struct{ err error }

func (s errSource) Select(context.Context) (endpoint.Descriptor, bool, error) {
	return endpoint.Descriptor{}, false, s.err
}

// recordingObserver captures worker events.
type recordingObserver struct {
	mu        sync.Mutex
	connected map[int]time.Time
	finished  map[int]bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{connected: map[int]time.Time{}, finished: map[int]bool{}}
}

func (o *recordingObserver) Connected(id int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connected[id] = time.Now()
}

func (o *recordingObserver) Finished(id int, _ time.Duration, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[id] = failed
}

type recordingCountdown struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordingCountdown) Remaining(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, d)
}

func (r *recordingCountdown) snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.calls...)
}

type recordingLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *recordingLogger) LogFailure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

var errNotInteger = errors.New("ERR value is not an integer or out of range")

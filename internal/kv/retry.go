package kv

import (
	"context"
	"time"

	"github.com/torosent/kvbench/internal/endpoint"
)

// RetryPolicy configures connect retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, connectivity errors are retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

type retryDialer struct {
	inner  Dialer
	policy RetryPolicy
}

// WithRetry wraps a Dialer so failed connects are attempted again.
func WithRetry(d Dialer, policy RetryPolicy) Dialer {
	if policy.MaxAttempts <= 1 {
		return d
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = IsConnectivity
	}
	return &retryDialer{inner: d, policy: policy}
}

func (r *retryDialer) Dial(ctx context.Context, ep endpoint.Descriptor) (Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		conn, err := r.inner.Dial(ctx, ep)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		// Don't delay after the last attempt.
		if attempt == r.policy.MaxAttempts || !r.policy.ShouldRetry(err) {
			return nil, err
		}
		delay := r.policy.Delay
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, err)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

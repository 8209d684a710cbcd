// Package retry wraps fallible remote calls with bounded exponential backoff.
// Every stage of the pipeline shares the same policy shape; exhausted retries
// propagate the last error so callers keep their own failure accounting.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy controls how an operation is retried. The zero value is not usable;
// start from Default and override what the test or caller needs. Sleep and
// Jitter exist so tests can run with zero delay and a fixed jitter factor.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt; it doubles each
	// attempt after that.
	BaseDelay time.Duration
	// Sleep waits for d or until ctx is cancelled. Nil means a timer-based
	// wait honoring ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, 1); the delay is scaled by 0.8 + 0.2*j.
	// Nil means math/rand.
	Jitter func() float64
}

// Default matches the pipeline-wide retry parameters: five attempts starting
// at one second.
func Default() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second}
}

// Delay returns the backoff before retrying after the given zero-based
// attempt: BaseDelay * 2^attempt, scaled by a jitter factor in [0.8, 1.0].
func (p Policy) Delay(attempt int) time.Duration {
	j := rand.Float64
	if p.Jitter != nil {
		j = p.Jitter
	}
	d := float64(p.BaseDelay) * float64(uint64(1)<<uint(attempt))
	return time.Duration(d * (0.8 + 0.2*j()))
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do invokes op until it succeeds or MaxAttempts is exhausted, backing off
// between attempts. The last error is returned as-is; nothing is wrapped or
// swallowed. A cancelled context ends the wait early with ctx.Err().
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		if err := p.sleep(ctx, p.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

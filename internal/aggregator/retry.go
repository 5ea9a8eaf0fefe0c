package aggregator

import (
	"context"
	"time"
)

// RetryPolicy retries an operation with doubling delays.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
	// Sleep waits for d or until ctx ends. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy waits 1s, 2s, 4s, 8s and 16s between six attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		Initial:    time.Second,
		Max:        30 * time.Second,
		Sleep:      SleepContext,
	}
}

// Delay returns the wait before retry number n, counted from zero.
func (p RetryPolicy) Delay(n int) time.Duration {
	d := p.Initial
	for i := 0; i < n; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Budget is the longest Do can take when every attempt is bounded by
// perAttempt: all the waits plus one perAttempt per try.
func (p RetryPolicy) Budget(perAttempt time.Duration) time.Duration {
	total := time.Duration(p.MaxRetries+1) * perAttempt
	for n := 0; n < p.MaxRetries; n++ {
		total += p.Delay(n)
	}
	return total
}

// Do runs fn until it succeeds, returns a non-retryable error, or retries run out.
// The last error from fn is returned unchanged, also when ctx ends during a wait.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) || attempt >= p.MaxRetries {
			return err
		}
		if sleep(ctx, p.Delay(attempt)) != nil {
			return err
		}
	}
}

func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures Retry.
//
// The wait before attempt n+1 is Wait*Multiplier^(n-1), capped at MaxWait.
// A Multiplier of 1 (or 0) gives a fixed backoff.
type RetryOpts struct {
	MaxAttempts int
	Wait        time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      bool
	// OnRetry, if set, is called after each failed attempt that will be
	// retried, with the 1-based attempt number and the wait that follows.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// FixedRetry returns options for attempts total tries separated by a constant
// wait, without jitter.
func FixedRetry(attempts int, wait time.Duration) RetryOpts {
	return RetryOpts{MaxAttempts: attempts, Wait: wait, MaxWait: wait, Multiplier: 1}
}

// ExponentialRetry doubles the wait after each failure up to max, with jitter.
func ExponentialRetry(attempts int, initial, max time.Duration) RetryOpts {
	return RetryOpts{MaxAttempts: attempts, Wait: initial, MaxWait: max, Multiplier: 2, Jitter: true}
}

func (o RetryOpts) next(wait time.Duration) time.Duration {
	m := o.Multiplier
	if m <= 0 {
		m = 1
	}
	n := time.Duration(float64(wait) * m)
	if o.MaxWait > 0 && n > o.MaxWait {
		n = o.MaxWait
	}
	return n
}

func (o RetryOpts) sleepFor(wait time.Duration) time.Duration {
	d := wait
	if o.Jitter {
		d = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	if o.MaxWait > 0 && d > o.MaxWait {
		d = o.MaxWait
	}
	return d
}

// Retry calls f until it succeeds, MaxAttempts is reached or ctx is done.
// The last failure is returned when attempts run out.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	wait := opts.Wait

	var result Result[T]
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Err[T](err)
		}
		result = f(ctx)
		if result.IsOk() || attempt == attempts {
			return result
		}

		d := opts.sleepFor(wait)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, result.err, d)
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
		wait = opts.next(wait)
	}
	return result
}

// RetryErr is Retry for functions that only return an error.
func RetryErr(ctx context.Context, opts RetryOpts, f func(context.Context) error) error {
	return Retry(ctx, opts, func(ctx context.Context) Result[struct{}] {
		return FromPair(struct{}{}, f(ctx))
	}).Error()
}

package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), FixedRetry(3, time.Millisecond), func(context.Context) Result[string] {
		calls++
		if calls < 3 {
			return Errf[string]("fail %d", calls)
		}
		return Ok("done")
	})
	if v, err := r.Unwrap(); err != nil || v != "done" {
		t.Fatalf("got %q, %v", v, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), FixedRetry(3, time.Millisecond), func(context.Context) Result[int] {
		calls++
		return Errf[int]("attempt %d", calls)
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if r.Error() == nil || r.Error().Error() != "attempt 3" {
		t.Fatalf("err = %v", r.Error())
	}
}

func TestRetry_FixedBackoffIsConstant(t *testing.T) {
	var waits []time.Duration
	var attempts []int
	opts := FixedRetry(4, 2*time.Millisecond)
	opts.OnRetry = func(attempt int, err error, wait time.Duration) {
		attempts = append(attempts, attempt)
		waits = append(waits, wait)
	}
	_ = RetryErr(context.Background(), opts, func(context.Context) error { return errors.New("x") })

	if len(waits) != 3 {
		t.Fatalf("expected 3 waits between 4 attempts, got %d", len(waits))
	}
	for i, w := range waits {
		if w != 2*time.Millisecond {
			t.Errorf("wait %d = %v, want 2ms", i, w)
		}
		if attempts[i] != i+1 {
			t.Errorf("attempt %d reported as %d", i+1, attempts[i])
		}
	}
}

func TestRetry_ExponentialCapped(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 5, Wait: time.Millisecond, MaxWait: 3 * time.Millisecond, Multiplier: 2}
	var waits []time.Duration
	opts.OnRetry = func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }
	_ = RetryErr(context.Background(), opts, func(context.Context) error { return errors.New("x") })

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v", waits)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestRetry_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opts := FixedRetry(5, time.Hour)
	opts.OnRetry = func(int, error, time.Duration) { cancel() }
	err := RetryErr(ctx, opts, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryErr(context.Background(), RetryOpts{}, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestExponentialRetry(t *testing.T) {
	o := ExponentialRetry(4, time.Second, 10*time.Second)
	if o.Multiplier != 2 || !o.Jitter || o.MaxAttempts != 4 {
		t.Fatalf("opts = %+v", o)
	}
}

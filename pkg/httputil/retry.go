package httputil

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx and 429 responses) with
// this type so that [Policy.Do] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Policy describes a bounded exponential backoff.
type Policy struct {
	Attempts  int           // Total attempts including the first (minimum 1)
	BaseDelay time.Duration // Delay before the second attempt
	MaxDelay  time.Duration // Ceiling for any single delay (0 = unbounded)
	Jitter    float64       // Fraction of each delay drawn at random, 0..1 (0 = none)
}

// DefaultPolicy returns 4 attempts starting at 250ms, doubling up to 4s,
// with 20% jitter.
func DefaultPolicy() Policy {
	return Policy{Attempts: 4, BaseDelay: 250 * time.Millisecond, MaxDelay: 4 * time.Second, Jitter: 0.2}
}

// wait returns the sleep for a nominal delay. With jitter j the result is
// uniform in [delay*(1-j), delay], so it never exceeds MaxDelay.
func (p Policy) wait(delay time.Duration) time.Duration {
	j := min(max(p.Jitter, 0), 1)
	if j == 0 || delay <= 0 {
		return delay
	}
	return delay - time.Duration(j*rand.Float64()*float64(delay))
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. fn receives the 1-based attempt number.
//
// It returns the number of attempts made and the last error. If ctx is done
// while waiting between attempts, ctx.Err() is returned.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	attempts := max(p.Attempts, 1)
	delay := p.BaseDelay
	var lastErr error

	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return i - 1, err
		}
		if err := fn(i); err == nil {
			return i, nil
		} else if lastErr = err; !IsRetryable(err) {
			return i, err
		}

		if i < attempts {
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
			t := time.NewTimer(p.wait(delay))
			select {
			case <-ctx.Done():
				t.Stop()
				return i, ctx.Err()
			case <-t.C:
				delay *= 2
			}
		}
	}
	return attempts, lastErr
}

// Retry executes fn up to attempts times with exponential backoff starting
// at delay. It only retries errors wrapped with [RetryableError].
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	_, err := Policy{Attempts: attempts, BaseDelay: delay}.Do(ctx, func(int) error { return fn() })
	return err
}

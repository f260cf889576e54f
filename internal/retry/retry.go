// Package retry runs operations that may fail transiently, backing
// off between attempts. Deploy pushes use it; local build work never
// retries.
package retry

import (
	"context"
	"errors"
	"time"
)

// Mode selects how the delay grows across attempts.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeLinear      Mode = "linear"
	ModeExponential Mode = "exponential"
)

// Policy is immutable after construction.
type Policy struct {
	Mode     Mode
	Initial  time.Duration // base delay
	Max      time.Duration // cap for growth
	Attempts int           // retries after the first failure
}

// DefaultPolicy backs off linearly: 1s base, 30s cap, two retries.
func DefaultPolicy() Policy {
	return Policy{Mode: ModeLinear, Initial: time.Second, Max: 30 * time.Second, Attempts: 2}
}

// Delay returns the backoff before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case ModeFixed:
		d = p.Initial
	case ModeExponential:
		d = p.Initial * (1 << (n - 1))
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Permanent marks err as not worth retrying; Do returns the wrapped
// error immediately. Bad credentials and missing remotes stay bad no
// matter how often they are retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Do runs fn until it succeeds, the policy is exhausted, or ctx ends.
// The last error is returned; ctx errors win over fn errors so callers
// can tell cancellation apart from persistent failure.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= p.Attempts {
			return err
		}
		timer := time.NewTimer(p.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

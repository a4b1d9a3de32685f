// Package retry provides two small retry primitives: Do, an exponential
// backoff wrapper that propagates the final error, and BestEffort, a bounded
// fire-at-a-possibly-gone-receiver loop that gives up silently.
package retry

import (
	"context"
	"time"
)

// Policy controls the backoff schedule. MaxRetries counts retries only, so an
// operation runs at most MaxRetries+1 times.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultPolicy retries 3 times with delays of 1s, 2s and 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 1 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// delay returns the sleep before retry attempt n (0-based).
func (p Policy) delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return d
}

// Do runs op, retrying on failure per the policy. The last error is returned
// unchanged once retries are exhausted, so callers can still classify it.
//
// Every failure is retry-eligible, including auth and model errors that a
// retry cannot fix. That mirrors the documented dispatch policy; fast-failing
// non-transient kinds would be a behavior change, not an optimization.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 0; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= p.MaxRetries {
			return err
		}
		if serr := Sleep(ctx, p.delay(attempt)); serr != nil {
			// Context torn down mid-backoff: surface the op's error, which is
			// the more useful of the two.
			return err
		}
	}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// BestEffort runs op with the same schedule but swallows the terminal error,
// reporting only whether op eventually succeeded. Used for delivery to
// destinations that may no longer exist.
func BestEffort(ctx context.Context, p Policy, op func(ctx context.Context) error) bool {
	return Do(ctx, p, op) == nil
}

// Sleep waits for d or until ctx is done, whichever comes first. It never
// blocks other goroutines.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

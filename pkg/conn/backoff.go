package conn

import (
	"context"
	"time"
)

// Backoff describes a bounded exponential retry schedule.
type Backoff struct {
	// Initial is the delay before the first attempt.
	Initial time.Duration

	// Factor multiplies the delay after each failed attempt. Values <= 1
	// are treated as 2 so delays always grow.
	Factor float64

	// Attempts is the maximum number of attempts in one sequence.
	Attempts int
}

// DefaultBackoff returns a 5 attempt schedule starting at 250ms.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:  250 * time.Millisecond,
		Factor:   2,
		Attempts: 5,
	}
}

// Delay returns the delay before attempt n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Millisecond
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2
	}
	d := float64(initial)
	for i := 1; i < n; i++ {
		d *= factor
	}
	return time.Duration(d)
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default WaitFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry waits Delay(n) before each attempt n and calls try until it
// succeeds, ctx is done, or Attempts is reached. It returns the number of
// attempts made and the last error (nil on success, ctx.Err() when aborted).
func (b Backoff) Retry(ctx context.Context, try func(context.Context) error, wait WaitFunc) (int, error) {
	if wait == nil {
		wait = Sleep
	}
	max := b.Attempts
	if max <= 0 {
		max = DefaultBackoff().Attempts
	}

	var err error
	for n := 1; n <= max; n++ {
		if werr := wait(ctx, b.Delay(n)); werr != nil {
			return n - 1, werr
		}
		if ctx.Err() != nil {
			return n - 1, ctx.Err()
		}
		if err = try(ctx); err == nil {
			return n, nil
		}
	}
	return max, err
}

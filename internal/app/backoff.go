package app

import (
	"context"
	"math/rand"
	"time"
)

// Accept retry configuration. Transient accept failures (for example file
// descriptor exhaustion) are retried with these bounds.
const (
	DefaultBackoffInitial = 5 * time.Millisecond
	DefaultBackoffMax     = time.Second
)

// backoff implements exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Wait sleeps for the current delay (±20% jitter) and doubles it, up to max.
// It returns early with the context error if ctx is cancelled.
func (b *backoff) Wait(ctx context.Context) error {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	timer := time.NewTimer(time.Duration(float64(b.current) + jitter))
	defer timer.Stop()

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset restores the initial delay.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the delay the next Wait will use, before jitter.
func (b *backoff) Current() time.Duration {
	return b.current
}

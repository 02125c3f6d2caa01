// Package backoff paces the polling loops of the worker binaries.
package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// Exponential doubles its delay after every failure, from Base up to Max, and
// adds up to Jitter of random spread so replicas do not retry in lockstep.
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration

	current time.Duration
}

// Next returns the delay to wait now and advances the sequence.
func (e *Exponential) Next() time.Duration {
	if e.current <= 0 {
		e.current = e.Base
	}
	d := e.current
	e.current = min(e.current*2, e.Max)
	return d + Jitter(e.Jitter)
}

// Reset starts the sequence over after a success.
func (e *Exponential) Reset() { e.current = 0 }

// Jitter returns a random duration in [0, window).
func Jitter(window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}
	return rand.N(window)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

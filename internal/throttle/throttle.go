// Package throttle provides a blocking sliding-window rate limiter.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rotisserie/eris"
)

// Clock is the subset of clock.Clock the throttle needs.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(t *Throttle) {
		t.clock = c
	}
}

// Throttle permits at most limit acquisitions within any trailing window.
// Acquire blocks the caller until a slot frees up.
type Throttle struct {
	limit  int
	window time.Duration
	clock  Clock

	mu     sync.Mutex
	stamps []time.Time // ring of the last limit acquisitions
	head   int         // index of the oldest stamp once the ring is full
}

// New creates a Throttle allowing limit calls per window. A non-positive
// limit or window disables throttling.
func New(limit int, window time.Duration, opts ...Option) *Throttle {
	t := &Throttle{
		limit:  limit,
		window: window,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.limit > 0 {
		t.stamps = make([]time.Time, 0, t.limit)
	}
	return t
}

// Acquire blocks until a call may proceed and records it.
func (t *Throttle) Acquire(ctx context.Context) error {
	if t.limit <= 0 || t.window <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "throttle: acquire")
		}

		now := t.clock.Now()
		if len(t.stamps) < t.limit {
			t.stamps = append(t.stamps, now)
			return nil
		}

		wait := t.stamps[t.head].Add(t.window).Sub(now)
		if wait <= 0 {
			t.stamps[t.head] = now
			t.head = (t.head + 1) % t.limit
			return nil
		}
		t.clock.Sleep(wait)
	}
}

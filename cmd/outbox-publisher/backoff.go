package main

import (
	"math/rand/v2"
	"time"
)

const (
	maxIdleBackoff = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

// pollBackoff doubles the wait after failed batches, capped at ceiling, and
// snaps back to the base interval after a clean one.
type pollBackoff struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
	jitter  func(time.Duration) time.Duration
}

func newPollBackoff(base, ceiling time.Duration) *pollBackoff {
	if ceiling < base {
		ceiling = base
	}
	return &pollBackoff{base: base, ceiling: ceiling, current: base, jitter: randomJitter}
}

// Fail grows the delay and returns the wait before the next poll.
func (b *pollBackoff) Fail() time.Duration {
	b.current = min(b.current*2, b.ceiling)
	return b.current + b.jitter(jitterWindow)
}

// Idle resets the delay and returns the wait used when the table was empty.
func (b *pollBackoff) Idle() time.Duration {
	b.current = b.base
	return b.base + b.jitter(jitterWindow)
}

func (b *pollBackoff) Reset() { b.current = b.base }

func randomJitter(window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}
	return rand.N(window)
}

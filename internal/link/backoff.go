package link

import (
	"math"
	"math/rand"
	"time"
)

// Default reconnect schedule.
const (
	DefaultBackoffFactor   = 1.5
	DefaultBackoffMinDelay = 500 * time.Millisecond
	DefaultBackoffMaxDelay = 5 * time.Second
)

// Backoff computes reconnect delays. Attempts are unlimited; the schedule
// only caps how long the link waits between them.
type Backoff struct {
	Factor   float64
	MinDelay time.Duration
	MaxDelay time.Duration
	Jitter   bool

	// random returns a value in [0, 1). Nil uses math/rand.
	random func() float64
}

// DefaultBackoff returns the standard schedule: ×1.5 from 500ms to 5s with jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Factor:   DefaultBackoffFactor,
		MinDelay: DefaultBackoffMinDelay,
		MaxDelay: DefaultBackoffMaxDelay,
		Jitter:   true,
	}
}

// withDefaults fills zero fields from DefaultBackoff.
func (b Backoff) withDefaults() Backoff {
	if b.Factor < 1 {
		b.Factor = DefaultBackoffFactor
	}
	if b.MinDelay <= 0 {
		b.MinDelay = DefaultBackoffMinDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = DefaultBackoffMaxDelay
	}
	if b.MaxDelay < b.MinDelay {
		b.MaxDelay = b.MinDelay
	}
	return b
}

// Delay returns the un-jittered wait before the given attempt (1-based).
// The first retry waits MinDelay and each later one grows by Factor up to MaxDelay.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.MinDelay) * math.Pow(b.Factor, float64(attempt-1))
	if d >= float64(b.MaxDelay) || math.IsInf(d, 1) {
		return b.MaxDelay
	}
	return time.Duration(d)
}

// Next returns the wait before the given attempt with jitter applied.
// Jittered delays fall in [max(MinDelay, d/2), d].
func (b Backoff) Next(attempt int) time.Duration {
	b = b.withDefaults()
	d := b.Delay(attempt)
	if !b.Jitter {
		return d
	}
	random := b.random
	if random == nil {
		random = rand.Float64
	}
	lo := d / 2
	if lo < b.MinDelay {
		lo = b.MinDelay
	}
	if d <= lo {
		return d
	}
	return lo + time.Duration(random()*float64(d-lo))
}

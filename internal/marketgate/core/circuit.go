// Package core provides a transport circuit breaker.
package core

import (
	"sync"
	"time"
)

// BreakerState represents breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// BreakerOptions configures breaker thresholds.
type BreakerOptions struct {
	FailureThreshold int64
	OpenFor          time.Duration
	HalfOpenMaxCalls int64
}

// Breaker fails transport sends fast while the upstream is down. It
// never retries; it only refuses sends that would burn admitted
// tokens on a dead connection.
type Breaker struct {
	mu               sync.Mutex
	state            BreakerState
	failures         int64
	openUntil        time.Time
	halfOpenInFlight int64
	opts             BreakerOptions
	clock            Clock
}

// NewBreaker constructs a breaker with defaults applied.
func NewBreaker(opts BreakerOptions, clock Clock) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 500 * time.Millisecond
	}
	if opts.HalfOpenMaxCalls <= 0 {
		opts.HalfOpenMaxCalls = 2
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Breaker{opts: opts, clock: clock}
}

// Allow reports whether the send should proceed.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.clock.Now().Before(b.openUntil) {
			return false
		}
		b.state = BreakerHalfOpen
		b.halfOpenInFlight = 1
		return true
	case BreakerHalfOpen:
		if b.halfOpenInFlight < b.opts.HalfOpenMaxCalls {
			b.halfOpenInFlight++
			return true
		}
		return false
	default:
		return true
	}
}

// OnSuccess records a successful send.
func (b *Breaker) OnSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.halfOpenInFlight--
	}
	b.state = BreakerClosed
	b.failures = 0
}

// OnFailure records a failed send and opens the breaker past the
// threshold.
func (b *Breaker) OnFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.halfOpenInFlight--
		b.state = BreakerOpen
		b.openUntil = b.clock.Now().Add(b.opts.OpenFor)
		b.failures = b.opts.FailureThreshold
		return
	}
	b.failures++
	if b.failures >= b.opts.FailureThreshold {
		b.state = BreakerOpen
		b.openUntil = b.clock.Now().Add(b.opts.OpenFor)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

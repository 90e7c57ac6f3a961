// Package core provides in flight tracking for graceful drains.
package core

import (
	"context"
	"sync"
)

// InFlight counts running schedules so shutdown can stop intake and
// wait for the remainder.
type InFlight struct {
	mu     sync.Mutex
	n      int64
	closed bool
	done   chan struct{}
}

// NewInFlight constructs an open tracker.
func NewInFlight() *InFlight {
	return &InFlight{done: make(chan struct{})}
}

// Begin registers a request. It reports false once closed.
func (f *InFlight) Begin() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.n++
	return true
}

// End marks a request as complete.
func (f *InFlight) End() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 && f.closed {
		close(f.done)
	}
}

// Close stops new requests.
func (f *InFlight) Close() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.n == 0 {
		close(f.done)
	}
}

// Wait blocks until drained or the context ends.
func (f *InFlight) Wait(ctx context.Context) error {
	if f == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

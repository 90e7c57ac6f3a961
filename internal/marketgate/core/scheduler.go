// Package core provides the priority scheduler.
package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// PriorityScheduler parks requests that could not be admitted and
// re-dispatches them as windows refill. Strict priority order with
// FIFO tie-break inside a level; already dispatched requests are never
// interrupted.
type PriorityScheduler struct {
	registry *BucketRegistry
	clock    Clock

	mu    sync.Mutex
	queue *pendingQueue
	seq   uint64

	kick chan struct{}
}

// NewPriorityScheduler constructs a scheduler over the registry.
func NewPriorityScheduler(registry *BucketRegistry, clock Clock) *PriorityScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PriorityScheduler{
		registry: registry,
		clock:    clock,
		queue:    newPendingQueue(),
		kick:     make(chan struct{}, 1),
	}
}

// Enqueue parks a request and wakes the dispatch loop.
func (s *PriorityScheduler) Enqueue(categories []Category, cost int64, priority Priority, attempt int) *Ticket {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.seq++
	ticket := &Ticket{
		seq:        s.seq,
		priority:   priority,
		categories: categories,
		cost:       cost,
		attempt:    attempt,
		enqueuedAt: s.clock.Now(),
		state:      ticketQueued,
		done:       make(chan struct{}),
	}
	s.queue.push(ticket)
	s.mu.Unlock()
	s.wake()
	return ticket
}

// Cancel removes a still queued ticket and releases its waiter with
// err. It reports false when the ticket already left the queue.
func (s *PriorityScheduler) Cancel(t *Ticket, err error) bool {
	if s == nil || t == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state != ticketQueued {
		return false
	}
	s.queue.remove(t)
	t.state = ticketCancelled
	t.err = err
	close(t.done)
	return true
}

// Wait blocks until the ticket is admitted, cancelled, timed out, or
// the context ends. No locks are held while parked. A timeout or
// cancellation that loses the race against admission is treated as
// admitted.
func (s *PriorityScheduler) Wait(ctx context.Context, t *Ticket, maxWait time.Duration) error {
	if s == nil || t == nil {
		return errors.New("scheduler ticket is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var timeout <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-t.done:
		return s.outcome(t)
	case <-ctx.Done():
		if s.Cancel(t, Wrap(CodeCancelled, "request cancelled while queued", ctx.Err())) {
			return s.outcome(t)
		}
		return s.outcome(t)
	case <-timeout:
		if s.Cancel(t, Wrap(CodeAdmissionTimeout, "request timed out while queued", nil)) {
			return s.outcome(t)
		}
		return s.outcome(t)
	}
}

// Run drives the dispatch loop until the context ends. The loop ticks
// at the smallest configured window and immediately after enqueues.
func (s *PriorityScheduler) Run(ctx context.Context) error {
	if s == nil || s.registry == nil {
		return errors.New("scheduler is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	interval := s.registry.MinInterval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case <-ticker.C:
			s.Dispatch(s.clock.Now())
		case <-s.kick:
			s.Dispatch(s.clock.Now())
		}
	}
}

// Dispatch scans the queue once in priority order, admitting every
// ticket the registry accepts at now.
func (s *PriorityScheduler) Dispatch(now time.Time) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.walk(func(t *Ticket) bool {
		ok, err := s.registry.TryAdmit(t.categories, t.cost, now)
		if err != nil {
			s.queue.remove(t)
			t.state = ticketCancelled
			t.err = err
			close(t.done)
			return true
		}
		if !ok {
			return true
		}
		s.queue.remove(t)
		t.state = ticketAdmitted
		close(t.done)
		return true
	})
}

// Len returns the number of queued requests.
func (s *PriorityScheduler) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

func (s *PriorityScheduler) outcome(t *Ticket) error {
	<-t.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.err
}

// drain releases every waiter when the scheduler stops.
func (s *PriorityScheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.walk(func(t *Ticket) bool {
		s.queue.remove(t)
		t.state = ticketCancelled
		t.err = ErrUnavailable
		close(t.done)
		return true
	})
}

func (s *PriorityScheduler) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

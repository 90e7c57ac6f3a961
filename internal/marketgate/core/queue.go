// Package core provides the pending request queue.
package core

import (
	"container/list"
	"time"
)

type ticketState int

const (
	ticketQueued ticketState = iota
	ticketAdmitted
	ticketCancelled
)

// Ticket is the caller's handle on one queued request. The scheduler
// owns all state transitions; callers only wait or cancel.
type Ticket struct {
	seq        uint64
	priority   Priority
	categories []Category
	cost       int64
	attempt    int
	enqueuedAt time.Time

	state ticketState
	err   error
	done  chan struct{}

	element *list.Element
}

// Sequence returns the enqueue sequence id.
func (t *Ticket) Sequence() uint64 {
	if t == nil {
		return 0
	}
	return t.seq
}

// Priority returns the ticket priority.
func (t *Ticket) Priority() Priority {
	if t == nil {
		return 0
	}
	return t.priority
}

// pendingQueue holds one FIFO list per priority level, so ordering
// within a level never depends on comparator ties.
type pendingQueue struct {
	levels [priorityLevels]*list.List
}

func newPendingQueue() *pendingQueue {
	q := &pendingQueue{}
	for i := range q.levels {
		q.levels[i] = list.New()
	}
	return q
}

func (q *pendingQueue) push(t *Ticket) {
	level := q.levels[int(t.priority-PriorityCritical)]
	t.element = level.PushBack(t)
}

func (q *pendingQueue) remove(t *Ticket) {
	if t.element == nil {
		return
	}
	level := q.levels[int(t.priority-PriorityCritical)]
	level.Remove(t.element)
	t.element = nil
}

func (q *pendingQueue) len() int {
	total := 0
	for _, level := range q.levels {
		total += level.Len()
	}
	return total
}

// walk visits tickets in strict priority order, FIFO within a level.
// The visitor may remove the current ticket; iteration stays safe
// because the next element is captured first. Returning false stops
// the walk.
func (q *pendingQueue) walk(visit func(t *Ticket) bool) {
	for _, level := range q.levels {
		for element := level.Front(); element != nil; {
			next := element.Next()
			ticket := element.Value.(*Ticket)
			if !visit(ticket) {
				return
			}
			element = next
		}
	}
}

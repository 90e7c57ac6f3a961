// Package observability provides in-memory metrics.
package observability

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics records controller measurements.
type Metrics interface {
	IncScheduled(priority string)
	IncQueued(priority string)
	IncOutcome(outcome string, priority string)
	IncRetry(priority string)
	IncAuditDropped()
	IncAuditError()
	ObserveLatency(op string, d time.Duration)
}

// InMemoryMetrics stores counters and latency summaries.
type InMemoryMetrics struct {
	counters  sync.Map
	latencies sync.Map
}

type latencySummary struct {
	count      atomic.Int64
	totalNanos atomic.Int64
	maxNanos   atomic.Int64
}

// NewInMemoryMetrics constructs an in-memory metrics recorder.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

// IncScheduled counts a schedule call.
func (m *InMemoryMetrics) IncScheduled(priority string) {
	m.incCounter("scheduled|" + priority)
}

// IncQueued counts a request parked in the queue.
func (m *InMemoryMetrics) IncQueued(priority string) {
	m.incCounter("queued|" + priority)
}

// IncOutcome counts a terminal request outcome.
func (m *InMemoryMetrics) IncOutcome(outcome string, priority string) {
	m.incCounter(fmt.Sprintf("outcome|%s|%s", outcome, priority))
}

// IncRetry counts a 429 driven re-enqueue.
func (m *InMemoryMetrics) IncRetry(priority string) {
	m.incCounter("retry|" + priority)
}

// IncAuditDropped counts audit records dropped on overflow.
func (m *InMemoryMetrics) IncAuditDropped() {
	m.incCounter("audit_dropped")
}

// IncAuditError counts audit sink failures.
func (m *InMemoryMetrics) IncAuditError() {
	m.incCounter("audit_error")
}

// ObserveLatency tracks latency measurements.
func (m *InMemoryMetrics) ObserveLatency(op string, d time.Duration) {
	if m == nil {
		return
	}
	entry := m.getLatency("latency|" + op)
	if entry == nil {
		return
	}
	nanos := d.Nanoseconds()
	entry.count.Add(1)
	entry.totalNanos.Add(nanos)
	for {
		current := entry.maxNanos.Load()
		if nanos <= current {
			break
		}
		if entry.maxNanos.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// Snapshot exports metrics values.
func (m *InMemoryMetrics) Snapshot() map[string]any {
	result := map[string]any{}
	if m == nil {
		return result
	}

	counters := map[string]int64{}
	m.counters.Range(func(key, value any) bool {
		k, ok := key.(string)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Int64)
		if !ok || counter == nil {
			return true
		}
		counters[k] = counter.Load()
		return true
	})

	latencies := map[string]map[string]int64{}
	m.latencies.Range(func(key, value any) bool {
		k, ok := key.(string)
		if !ok {
			return true
		}
		entry, ok := value.(*latencySummary)
		if !ok || entry == nil {
			return true
		}
		latencies[k] = map[string]int64{
			"count":      entry.count.Load(),
			"totalNanos": entry.totalNanos.Load(),
			"maxNanos":   entry.maxNanos.Load(),
		}
		return true
	})

	result["counters"] = counters
	result["latencies"] = latencies
	return result
}

// Counter returns a single counter value for tests.
func (m *InMemoryMetrics) Counter(key string) int64 {
	if m == nil {
		return 0
	}
	if existing, ok := m.counters.Load(key); ok {
		if counter, ok := existing.(*atomic.Int64); ok {
			return counter.Load()
		}
	}
	return 0
}

func (m *InMemoryMetrics) incCounter(key string) {
	if m == nil || key == "" {
		return
	}
	if existing, ok := m.counters.Load(key); ok {
		if counter, ok := existing.(*atomic.Int64); ok {
			counter.Add(1)
			return
		}
	}
	counter := &atomic.Int64{}
	counter.Add(1)
	if actual, loaded := m.counters.LoadOrStore(key, counter); loaded {
		if stored, ok := actual.(*atomic.Int64); ok {
			stored.Add(1)
		}
	}
}

func (m *InMemoryMetrics) getLatency(key string) *latencySummary {
	if key == "" {
		return nil
	}
	if existing, ok := m.latencies.Load(key); ok {
		if entry, ok := existing.(*latencySummary); ok {
			return entry
		}
	}
	entry := &latencySummary{}
	actual, _ := m.latencies.LoadOrStore(key, entry)
	if stored, ok := actual.(*latencySummary); ok {
		return stored
	}
	return entry
}

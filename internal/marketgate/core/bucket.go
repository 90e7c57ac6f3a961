// Package core provides fixed window token buckets.
package core

import (
	"sync"
	"time"
)

// Bucket is a fixed window token counter for one category. The window
// resets to full capacity when the interval elapses; missed windows are
// not accumulated.
type Bucket struct {
	mu           sync.Mutex
	capacity     int64
	interval     time.Duration
	tokens       int64
	lastRefillAt time.Time
}

// NewBucket constructs a full bucket.
func NewBucket(cfg LimitConfig, now time.Time) (*Bucket, error) {
	if cfg.Capacity <= 0 {
		return nil, Wrap(CodeConfiguration, "bucket capacity must be positive", nil)
	}
	if cfg.Interval <= 0 {
		return nil, Wrap(CodeConfiguration, "bucket interval must be positive", nil)
	}
	return &Bucket{
		capacity:     cfg.Capacity,
		interval:     cfg.Interval,
		tokens:       cfg.Capacity,
		lastRefillAt: now,
	}, nil
}

// Spend refills for now, then debits cost iff enough tokens remain.
// The refill, check, and debit are a single atomic step.
func (b *Bucket) Spend(cost int64, now time.Time) bool {
	if b == nil || cost <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now)
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// Refund credits cost back, capped at capacity. Used when a multi
// bucket admission is rolled back.
func (b *Bucket) Refund(cost int64) {
	if b == nil || cost <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens += cost
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// ForceEmpty zeroes the tokens without touching the refill timestamp,
// so the remainder of the current window stays exhausted. Used when the
// upstream reports a violation the local bucket did not predict.
func (b *Bucket) ForceEmpty() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = 0
}

// Status returns a snapshot without mutating state or refilling.
func (b *Bucket) Status() BucketStatus {
	if b == nil {
		return BucketStatus{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return BucketStatus{
		Tokens:       b.tokens,
		Capacity:     b.capacity,
		Interval:     b.interval,
		LastRefillAt: b.lastRefillAt,
	}
}

// Interval returns the configured refill interval.
func (b *Bucket) Interval() time.Duration {
	if b == nil {
		return 0
	}
	return b.interval
}

// refillLocked performs at most one full reset per call.
func (b *Bucket) refillLocked(now time.Time) {
	if now.Sub(b.lastRefillAt) < b.interval {
		return
	}
	b.tokens = b.capacity
	b.lastRefillAt = now
}

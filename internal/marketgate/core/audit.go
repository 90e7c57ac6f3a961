// Package core provides best-effort audit recording.
package core

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
)

// AuditSink persists audit records. Implementations are supplied at
// construction; the controller treats them as fire-and-forget.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// TeeSink fans a record out to several sinks. The first error is
// returned after every sink has been tried.
type TeeSink []AuditSink

// Record writes the record to every sink.
func (t TeeSink) Record(ctx context.Context, rec AuditRecord) error {
	var first error
	for _, sink := range t {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AuditDispatcher decouples the request path from the sink. Records
// are handed to a bounded channel; a background worker drains it.
// When the buffer is full the record is dropped and counted, so the
// sink can never block or fail the controlled traffic.
type AuditDispatcher struct {
	sink        AuditSink
	logger      observability.Logger
	metrics     observability.Metrics
	ch          chan AuditRecord
	dropped     atomic.Int64
	recordLimit time.Duration
}

// NewAuditDispatcher constructs a dispatcher with the given buffer.
func NewAuditDispatcher(sink AuditSink, buffer int, logger observability.Logger, metrics observability.Metrics) *AuditDispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &AuditDispatcher{
		sink:        sink,
		logger:      logger,
		metrics:     metrics,
		ch:          make(chan AuditRecord, buffer),
		recordLimit: 2 * time.Second,
	}
}

// Record enqueues the record without blocking.
func (d *AuditDispatcher) Record(rec AuditRecord) {
	if d == nil {
		return
	}
	select {
	case d.ch <- rec:
	default:
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.IncAuditDropped()
		}
	}
}

// Dropped returns the number of records lost to overflow.
func (d *AuditDispatcher) Dropped() int64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Start drains records into the sink until the context ends. Sink
// errors are logged and counted; they never propagate.
func (d *AuditDispatcher) Start(ctx context.Context) error {
	if d == nil || d.sink == nil {
		return errors.New("audit dispatcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return nil
		case rec := <-d.ch:
			d.deliver(ctx, rec)
		}
	}
}

// flush makes one best-effort pass over whatever is still buffered.
func (d *AuditDispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), d.recordLimit)
	defer cancel()
	for {
		select {
		case rec := <-d.ch:
			d.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (d *AuditDispatcher) deliver(ctx context.Context, rec AuditRecord) {
	recordCtx, cancel := context.WithTimeout(ctx, d.recordLimit)
	defer cancel()
	if err := d.sink.Record(recordCtx, rec); err != nil {
		if d.metrics != nil {
			d.metrics.IncAuditError()
		}
		if d.logger != nil {
			d.logger.Error("audit record failed", map[string]any{
				"endpoint": rec.Endpoint,
				"status":   string(rec.Status),
				"error":    err.Error(),
			})
		}
	}
}

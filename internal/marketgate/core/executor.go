// Package core executes admitted requests.
package core

import (
	"context"
	"errors"
	"net/http"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
)

// Sender performs one transport call. The controller never builds its
// own HTTP client; the function is supplied at construction.
type Sender func(ctx context.Context, desc *RequestDescriptor) (*Response, error)

// errUpstreamRateLimited marks a 429 reply so the controller can
// re-enqueue; it never escapes Schedule.
var errUpstreamRateLimited = errors.New("upstream rate limited")

// Executor performs exactly one transport call per admission and
// interprets the result.
type Executor struct {
	send     Sender
	registry *BucketRegistry
	breaker  *Breaker
	audit    *AuditDispatcher
	metrics  observability.Metrics
	clock    Clock
}

// NewExecutor constructs an executor.
func NewExecutor(send Sender, registry *BucketRegistry, breaker *Breaker, audit *AuditDispatcher, metrics observability.Metrics, clock Clock) (*Executor, error) {
	if send == nil {
		return nil, Wrap(CodeConfiguration, "sender is required", nil)
	}
	if registry == nil {
		return nil, Wrap(CodeConfiguration, "bucket registry is required", nil)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Executor{
		send:     send,
		registry: registry,
		breaker:  breaker,
		audit:    audit,
		metrics:  metrics,
		clock:    clock,
	}, nil
}

// Execute sends the admitted request once. A 429 reply force-empties
// every touched bucket and comes back as errUpstreamRateLimited; other
// transport failures surface without retry.
func (e *Executor) Execute(ctx context.Context, desc *RequestDescriptor, categories []Category, priority Priority, attempt int) (*Response, error) {
	if e == nil {
		return nil, errors.New("executor is nil")
	}
	endpoint := desc.Endpoint()

	if e.breaker != nil && !e.breaker.Allow() {
		e.record(AuditRecord{
			Endpoint: endpoint,
			Priority: priority,
			Status:   AuditError,
			Attempt:  attempt,
		})
		if e.metrics != nil {
			e.metrics.IncOutcome("error", priority.String())
		}
		return nil, Wrap(CodeTransportError, "transport circuit open", nil)
	}

	start := e.clock.Now()
	resp, err := e.send(ctx, desc)
	duration := e.clock.Now().Sub(start)
	durationMs := duration.Milliseconds()

	if err != nil {
		if e.breaker != nil {
			e.breaker.OnFailure()
		}
		e.record(AuditRecord{
			Endpoint:   endpoint,
			Priority:   priority,
			Status:     AuditError,
			DurationMs: &durationMs,
			Attempt:    attempt,
		})
		if e.metrics != nil {
			e.metrics.IncOutcome("error", priority.String())
		}
		return nil, Wrap(CodeTransportError, "transport send failed", err)
	}
	if e.breaker != nil {
		e.breaker.OnSuccess()
	}
	if e.metrics != nil {
		e.metrics.ObserveLatency("send", duration)
	}

	code := resp.StatusCode
	if code == http.StatusTooManyRequests {
		e.registry.ForceEmpty(categories)
		e.record(AuditRecord{
			Endpoint:   endpoint,
			Priority:   priority,
			Status:     AuditRateLimited,
			StatusCode: &code,
			DurationMs: &durationMs,
			Attempt:    attempt,
		})
		if e.metrics != nil {
			e.metrics.IncOutcome("rate_limited", priority.String())
		}
		return nil, errUpstreamRateLimited
	}

	e.record(AuditRecord{
		Endpoint:   endpoint,
		Priority:   priority,
		Status:     AuditExecuted,
		StatusCode: &code,
		DurationMs: &durationMs,
		Attempt:    attempt,
	})
	if e.metrics != nil {
		e.metrics.IncOutcome("executed", priority.String())
	}
	return resp, nil
}

func (e *Executor) record(rec AuditRecord) {
	if e.audit == nil {
		return
	}
	rec.Timestamp = e.clock.Now()
	e.audit.Record(rec)
}

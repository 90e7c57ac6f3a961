// Package core provides the admission controller facade.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
)

// ScheduleOptions tunes a single scheduled request.
type ScheduleOptions struct {
	Priority Priority
	Cost     int64
	MaxWait  time.Duration
}

// ControllerParams carries the assembled controller dependencies.
type ControllerParams struct {
	Registry   *BucketRegistry
	Classifier *Classifier
	Scheduler  *PriorityScheduler
	Executor   *Executor
	Audit      *AuditDispatcher
	InFlight   *InFlight
	Clock      Clock
	Logger     observability.Logger
	Metrics    observability.Metrics

	MaxAttempts    int
	DefaultCost    int64
	DefaultMaxWait time.Duration
}

// Controller admits, queues, executes, and audits outbound
// marketplace calls. Instances share no state; several controllers
// (one per external account) can coexist in a process.
type Controller struct {
	registry   *BucketRegistry
	classifier *Classifier
	scheduler  *PriorityScheduler
	executor   *Executor
	audit      *AuditDispatcher
	inflight   *InFlight
	clock      Clock
	logger     observability.Logger
	metrics    observability.Metrics

	maxAttempts    int
	defaultCost    int64
	defaultMaxWait time.Duration
}

// NewController validates dependencies and builds the controller.
func NewController(params ControllerParams) (*Controller, error) {
	if params.Registry == nil {
		return nil, Wrap(CodeConfiguration, "bucket registry is required", nil)
	}
	if params.Classifier == nil {
		return nil, Wrap(CodeConfiguration, "classifier is required", nil)
	}
	if params.Scheduler == nil {
		return nil, Wrap(CodeConfiguration, "scheduler is required", nil)
	}
	if params.Executor == nil {
		return nil, Wrap(CodeConfiguration, "executor is required", nil)
	}
	if params.Clock == nil {
		params.Clock = SystemClock{}
	}
	if params.InFlight == nil {
		params.InFlight = NewInFlight()
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = 3
	}
	if params.DefaultCost <= 0 {
		params.DefaultCost = 1
	}
	if params.DefaultMaxWait <= 0 {
		params.DefaultMaxWait = 30 * time.Second
	}
	return &Controller{
		registry:       params.Registry,
		classifier:     params.Classifier,
		scheduler:      params.Scheduler,
		executor:       params.Executor,
		audit:          params.Audit,
		inflight:       params.InFlight,
		clock:          params.Clock,
		logger:         params.Logger,
		metrics:        params.Metrics,
		maxAttempts:    params.MaxAttempts,
		defaultCost:    params.DefaultCost,
		defaultMaxWait: params.DefaultMaxWait,
	}, nil
}

// Schedule admits the request immediately when every category has
// capacity, otherwise parks it by priority. The admitted request is
// sent exactly once per attempt; 429 replies re-enqueue with the same
// priority up to the attempt budget.
func (c *Controller) Schedule(ctx context.Context, desc *RequestDescriptor, opts ScheduleOptions) (*Response, error) {
	if c == nil {
		return nil, errors.New("controller is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if desc == nil || desc.Method == "" || desc.Path == "" {
		return nil, Wrap(CodeInvalidInput, "request method and path are required", nil)
	}
	priority := opts.Priority
	if priority == 0 {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, Wrap(CodeInvalidInput, "unknown priority", nil)
	}
	cost := opts.Cost
	if cost == 0 {
		cost = c.defaultCost
	}
	if cost < 0 {
		return nil, Wrap(CodeInvalidInput, "cost must be positive", nil)
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = c.defaultMaxWait
	}

	if !c.inflight.Begin() {
		return nil, ErrUnavailable
	}
	defer c.inflight.End()

	categories := c.classifier.Categories(desc)
	if c.metrics != nil {
		c.metrics.IncScheduled(priority.String())
	}

	for attempt := 1; ; attempt++ {
		admitted, err := c.registry.TryAdmit(categories, cost, c.clock.Now())
		if err != nil {
			return nil, err
		}
		if !admitted {
			if err := c.await(ctx, desc, categories, cost, priority, attempt, maxWait); err != nil {
				return nil, err
			}
		}

		resp, err := c.executor.Execute(ctx, desc, categories, priority, attempt)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, errUpstreamRateLimited) {
			return nil, err
		}
		if attempt >= c.maxAttempts {
			if c.metrics != nil {
				c.metrics.IncOutcome("exhausted", priority.String())
			}
			return nil, Wrap(CodeRateLimitExhausted, "rate limit retries exhausted", err)
		}
		if c.metrics != nil {
			c.metrics.IncRetry(priority.String())
		}
		if c.logger != nil {
			c.logger.Info("upstream rate limited, re-enqueueing", map[string]any{
				"endpoint": desc.Endpoint(),
				"priority": priority.String(),
				"attempt":  attempt,
			})
		}
	}
}

// Status snapshots every bucket for observability.
func (c *Controller) Status() map[Category]BucketStatus {
	if c == nil {
		return map[Category]BucketStatus{}
	}
	return c.registry.Status()
}

// await parks the request until admitted. Timeouts and cancellations
// are reported to the caller and audited as ERROR transitions.
func (c *Controller) await(ctx context.Context, desc *RequestDescriptor, categories []Category, cost int64, priority Priority, attempt int, maxWait time.Duration) error {
	ticket := c.scheduler.Enqueue(categories, cost, priority, attempt)
	c.record(AuditRecord{
		Endpoint: desc.Endpoint(),
		Priority: priority,
		Status:   AuditQueued,
		Attempt:  attempt,
	})
	if c.metrics != nil {
		c.metrics.IncQueued(priority.String())
	}
	err := c.scheduler.Wait(ctx, ticket, maxWait)
	if err == nil {
		return nil
	}
	c.record(AuditRecord{
		Endpoint: desc.Endpoint(),
		Priority: priority,
		Status:   AuditError,
		Attempt:  attempt,
	})
	if c.metrics != nil {
		switch CodeOf(err) {
		case CodeAdmissionTimeout:
			c.metrics.IncOutcome("timeout", priority.String())
		case CodeCancelled:
			c.metrics.IncOutcome("cancelled", priority.String())
		default:
			c.metrics.IncOutcome("error", priority.String())
		}
	}
	return err
}

func (c *Controller) record(rec AuditRecord) {
	if c.audit == nil {
		return
	}
	rec.Timestamp = c.clock.Now()
	c.audit.Record(rec)
}

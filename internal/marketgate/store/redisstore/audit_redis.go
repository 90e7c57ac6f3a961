// Package redisstore persists audit records to Redis.
package redisstore

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/core"
)

// AuditSink appends audit rows to a capped Redis stream and keeps
// per-outcome counters. Errors are surfaced to the dispatcher, which
// treats them as best-effort.
type AuditSink struct {
	rdb    *redis.Client
	stream string
	prefix string
	maxLen int64
}

// Option configures the sink.
type Option func(*AuditSink)

// WithStream overrides the stream key.
func WithStream(stream string) Option {
	return func(s *AuditSink) { s.stream = stream }
}

// WithPrefix overrides the counter key prefix.
func WithPrefix(prefix string) Option {
	return func(s *AuditSink) { s.prefix = prefix }
}

// WithMaxLen caps the stream length (approximate trim).
func WithMaxLen(n int64) Option {
	return func(s *AuditSink) { s.maxLen = n }
}

// NewAuditSink constructs a sink over the given client.
func NewAuditSink(rdb *redis.Client, opts ...Option) *AuditSink {
	s := &AuditSink{
		rdb:    rdb,
		stream: "marketgate:audit",
		prefix: "marketgate:audit",
		maxLen: 10000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record writes one audit row.
func (s *AuditSink) Record(ctx context.Context, rec core.AuditRecord) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	values := map[string]any{
		"endpoint": rec.Endpoint,
		"priority": rec.Priority.String(),
		"status":   string(rec.Status),
		"attempt":  rec.Attempt,
		"ts":       rec.Timestamp.UnixMilli(),
	}
	if rec.StatusCode != nil {
		values["code"] = strconv.Itoa(*rec.StatusCode)
	}
	if rec.DurationMs != nil {
		values["duration_ms"] = strconv.FormatInt(*rec.DurationMs, 10)
	}

	pipe := s.rdb.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	})
	pipe.HIncrBy(ctx, s.prefix+":outcome", string(rec.Status), 1)
	_, err := pipe.Exec(ctx)
	return err
}

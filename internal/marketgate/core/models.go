// Package core defines request, bucket, and audit models.
package core

import (
	"net/http"
	"time"
)

// Category names a rate limit scope on the marketplace API.
type Category string

const (
	CategoryGlobal   Category = "GLOBAL"
	CategoryCatalog  Category = "CATALOG"
	CategoryOrders   Category = "ORDERS"
	CategoryListings Category = "LISTINGS"
)

// Priority orders queued requests. Lower values are served first.
type Priority int

const (
	PriorityCritical Priority = iota + 1
	PriorityHigh
	PriorityNormal
	PriorityLow
)

const priorityLevels = 4

// Valid reports whether the priority is a known level.
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

// String returns the lowercase priority label.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority maps a label to a priority level.
func ParsePriority(label string) (Priority, bool) {
	switch label {
	case "critical":
		return PriorityCritical, true
	case "high":
		return PriorityHigh, true
	case "normal", "":
		return PriorityNormal, true
	case "low":
		return PriorityLow, true
	default:
		return 0, false
	}
}

// RequestDescriptor describes an outbound marketplace call. Body and
// headers are opaque to the controller.
type RequestDescriptor struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Endpoint returns the audit label for the descriptor.
func (d *RequestDescriptor) Endpoint() string {
	if d == nil {
		return ""
	}
	return d.Method + " " + d.Path
}

// Response carries the marketplace reply back to the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// LimitConfig sets one category's fixed window limit.
type LimitConfig struct {
	Capacity int64
	Interval time.Duration
}

// BucketStatus is a read-only bucket snapshot.
type BucketStatus struct {
	Tokens       int64
	Capacity     int64
	Interval     time.Duration
	LastRefillAt time.Time
}

// AuditStatus labels an audit lifecycle transition.
type AuditStatus string

const (
	AuditQueued      AuditStatus = "QUEUED"
	AuditExecuted    AuditStatus = "EXECUTED"
	AuditRateLimited AuditStatus = "RATE_LIMITED"
	AuditError       AuditStatus = "ERROR"
)

// AuditRecord is one append-only row per lifecycle transition.
type AuditRecord struct {
	Endpoint   string      `json:"endpoint"`
	Priority   Priority    `json:"priority"`
	Status     AuditStatus `json:"status"`
	StatusCode *int        `json:"statusCode,omitempty"`
	DurationMs *int64      `json:"durationMs,omitempty"`
	Attempt    int         `json:"attempt"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DefaultLimits returns the marketplace limit table used when no table
// is configured. Windows follow the upstream fixed-window behavior.
func DefaultLimits() map[Category]LimitConfig {
	return map[Category]LimitConfig{
		CategoryGlobal:   {Capacity: 120, Interval: time.Minute},
		CategoryCatalog:  {Capacity: 30, Interval: time.Minute},
		CategoryOrders:   {Capacity: 45, Interval: time.Minute},
		CategoryListings: {Capacity: 30, Interval: time.Minute},
	}
}

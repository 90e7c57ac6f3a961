// Package inmemory provides an in-memory audit log.
package inmemory

import (
	"context"
	"sync"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/core"
)

// AuditLog keeps the newest records in a bounded ring. It backs the
// ops API's recent-audit endpoint and is the default sink.
type AuditLog struct {
	mu      sync.Mutex
	max     int
	records []core.AuditRecord
}

// NewAuditLog constructs a log bounded to max rows.
func NewAuditLog(max int) *AuditLog {
	if max <= 0 {
		max = 1024
	}
	return &AuditLog{max: max}
}

// Record appends a row, evicting the oldest past the bound.
func (l *AuditLog) Record(ctx context.Context, rec core.AuditRecord) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	if len(l.records) > l.max {
		l.records = l.records[len(l.records)-l.max:]
	}
	return nil
}

// Recent returns up to n rows, newest first.
func (l *AuditLog) Recent(n int) []core.AuditRecord {
	if l == nil || n <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.records) {
		n = len(l.records)
	}
	result := make([]core.AuditRecord, 0, n)
	for i := len(l.records) - 1; i >= len(l.records)-n; i-- {
		result = append(result, l.records[i])
	}
	return result
}

// Len returns the number of stored rows.
func (l *AuditLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

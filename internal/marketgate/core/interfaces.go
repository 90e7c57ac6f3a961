// Package core defines transport facing interfaces.
package core

import "context"

// ScheduleService is the surface transports call into.
type ScheduleService interface {
	Schedule(ctx context.Context, desc *RequestDescriptor, opts ScheduleOptions) (*Response, error)
	Status() map[Category]BucketStatus
}

// AuditReader exposes recent audit rows for the ops API.
type AuditReader interface {
	Recent(n int) []AuditRecord
}

// Transport exposes the controller over a network surface.
type Transport interface {
	Shutdown(ctx context.Context) error
}

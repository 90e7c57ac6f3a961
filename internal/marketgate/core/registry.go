// Package core provides the bucket registry.
package core

import (
	"sort"
	"time"
)

// BucketRegistry owns all category buckets and performs all-or-nothing
// multi bucket admission. Categories are always visited in one
// canonical order so concurrent admissions cannot deadlock.
type BucketRegistry struct {
	order   []Category
	buckets map[Category]*Bucket
}

// NewBucketRegistry validates the limit table and builds full buckets.
func NewBucketRegistry(limits map[Category]LimitConfig, now time.Time) (*BucketRegistry, error) {
	if len(limits) == 0 {
		return nil, Wrap(CodeConfiguration, "limit table is empty", nil)
	}
	if _, ok := limits[CategoryGlobal]; !ok {
		return nil, Wrap(CodeConfiguration, "limit table must include GLOBAL", nil)
	}
	buckets := make(map[Category]*Bucket, len(limits))
	order := make([]Category, 0, len(limits))
	for category, cfg := range limits {
		if category == "" {
			return nil, Wrap(CodeConfiguration, "category name is empty", nil)
		}
		bucket, err := NewBucket(cfg, now)
		if err != nil {
			return nil, err
		}
		buckets[category] = bucket
		order = append(order, category)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return &BucketRegistry{order: order, buckets: buckets}, nil
}

// Has reports whether the category is configured.
func (r *BucketRegistry) Has(category Category) bool {
	if r == nil {
		return false
	}
	_, ok := r.buckets[category]
	return ok
}

// TryAdmit debits cost from every category or from none. Buckets
// debited before a failing category are refunded before returning.
func (r *BucketRegistry) TryAdmit(categories []Category, cost int64, now time.Time) (bool, error) {
	if r == nil {
		return false, Wrap(CodeConfiguration, "bucket registry is nil", nil)
	}
	if len(categories) == 0 {
		return false, Wrap(CodeInvalidInput, "no categories to admit", nil)
	}
	if cost <= 0 {
		return false, Wrap(CodeInvalidInput, "cost must be positive", nil)
	}
	wanted := make(map[Category]bool, len(categories))
	for _, category := range categories {
		if _, ok := r.buckets[category]; !ok {
			return false, Wrap(CodeConfiguration, "category is not configured: "+string(category), nil)
		}
		wanted[category] = true
	}
	debited := make([]*Bucket, 0, len(categories))
	for _, category := range r.order {
		if !wanted[category] {
			continue
		}
		bucket := r.buckets[category]
		if bucket.Spend(cost, now) {
			debited = append(debited, bucket)
			continue
		}
		for _, spent := range debited {
			spent.Refund(cost)
		}
		return false, nil
	}
	return true, nil
}

// ForceEmpty zeroes every listed category bucket.
func (r *BucketRegistry) ForceEmpty(categories []Category) {
	if r == nil {
		return
	}
	for _, category := range categories {
		if bucket, ok := r.buckets[category]; ok {
			bucket.ForceEmpty()
		}
	}
}

// Status snapshots every bucket for observability.
func (r *BucketRegistry) Status() map[Category]BucketStatus {
	result := make(map[Category]BucketStatus)
	if r == nil {
		return result
	}
	for category, bucket := range r.buckets {
		result[category] = bucket.Status()
	}
	return result
}

// MinInterval returns the smallest configured refill interval. The
// scheduler re-polls at least once per this interval.
func (r *BucketRegistry) MinInterval() time.Duration {
	if r == nil || len(r.order) == 0 {
		return time.Second
	}
	min := time.Duration(0)
	for _, category := range r.order {
		interval := r.buckets[category].Interval()
		if min == 0 || interval < min {
			min = interval
		}
	}
	return min
}

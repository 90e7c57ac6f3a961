package core

import (
	"testing"
	"time"
)

func testLimits() map[Category]LimitConfig {
	return map[Category]LimitConfig{
		CategoryGlobal:  {Capacity: 5, Interval: time.Minute},
		CategoryCatalog: {Capacity: 2, Interval: time.Minute},
		CategoryOrders:  {Capacity: 3, Interval: time.Minute},
	}
}

func TestRegistry_RequiresGlobal(t *testing.T) {
	t.Parallel()

	_, err := NewBucketRegistry(map[Category]LimitConfig{
		CategoryOrders: {Capacity: 1, Interval: time.Minute},
	}, time.Now())
	if CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewBucketRegistry(nil, time.Now()); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error for empty table, got %v", err)
	}
}

func TestRegistry_TryAdmitDebitsEveryCategory(t *testing.T) {
	t.Parallel()

	now := time.Now()
	registry, err := NewBucketRegistry(testLimits(), now)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	ok, err := registry.TryAdmit([]Category{CategoryGlobal, CategoryCatalog}, 1, now)
	if err != nil || !ok {
		t.Fatalf("expected admission, got ok=%v err=%v", ok, err)
	}

	status := registry.Status()
	if status[CategoryGlobal].Tokens != 4 {
		t.Fatalf("expected GLOBAL at 4, got %d", status[CategoryGlobal].Tokens)
	}
	if status[CategoryCatalog].Tokens != 1 {
		t.Fatalf("expected CATALOG at 1, got %d", status[CategoryCatalog].Tokens)
	}
	if status[CategoryOrders].Tokens != 3 {
		t.Fatalf("untouched category must keep its tokens, got %d", status[CategoryOrders].Tokens)
	}
}

func TestRegistry_TryAdmitIsAllOrNothing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	registry, err := NewBucketRegistry(testLimits(), now)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	// Exhaust CATALOG, leaving GLOBAL with room.
	for i := 0; i < 2; i++ {
		if ok, _ := registry.TryAdmit([]Category{CategoryGlobal, CategoryCatalog}, 1, now); !ok {
			t.Fatalf("setup admission %d failed", i)
		}
	}

	ok, err := registry.TryAdmit([]Category{CategoryGlobal, CategoryCatalog}, 1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected denial when one category is empty")
	}

	// GLOBAL was debited then refunded; the denial must leave it intact.
	if got := registry.Status()[CategoryGlobal].Tokens; got != 3 {
		t.Fatalf("denied admission must refund GLOBAL, got %d", got)
	}
}

func TestRegistry_TryAdmitValidatesInput(t *testing.T) {
	t.Parallel()

	now := time.Now()
	registry, err := NewBucketRegistry(testLimits(), now)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	if _, err := registry.TryAdmit([]Category{"UNKNOWN"}, 1, now); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error for unknown category, got %v", err)
	}
	if _, err := registry.TryAdmit(nil, 1, now); CodeOf(err) != CodeInvalidInput {
		t.Fatalf("expected invalid input for empty categories, got %v", err)
	}
	if _, err := registry.TryAdmit([]Category{CategoryGlobal}, 0, now); CodeOf(err) != CodeInvalidInput {
		t.Fatalf("expected invalid input for zero cost, got %v", err)
	}
}

func TestRegistry_ForceEmptyZeroesListedBuckets(t *testing.T) {
	t.Parallel()

	now := time.Now()
	registry, err := NewBucketRegistry(testLimits(), now)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	registry.ForceEmpty([]Category{CategoryGlobal, CategoryOrders})
	status := registry.Status()
	if status[CategoryGlobal].Tokens != 0 || status[CategoryOrders].Tokens != 0 {
		t.Fatalf("expected listed buckets emptied, got %+v", status)
	}
	if status[CategoryCatalog].Tokens != 2 {
		t.Fatalf("unlisted bucket must keep its tokens, got %d", status[CategoryCatalog].Tokens)
	}
}

func TestRegistry_MinInterval(t *testing.T) {
	t.Parallel()

	now := time.Now()
	registry, err := NewBucketRegistry(map[Category]LimitConfig{
		CategoryGlobal: {Capacity: 1, Interval: time.Minute},
		CategoryOrders: {Capacity: 1, Interval: 5 * time.Second},
	}, now)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	if got := registry.MinInterval(); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
}

package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
)

func TestAuditDispatcher_DeliversRecords(t *testing.T) {
	t.Parallel()

	sink := &memSink{}
	dispatcher := NewAuditDispatcher(sink, 8, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Start(ctx)
	}()

	dispatcher.Record(AuditRecord{Endpoint: "GET /ws/buyback/v1/orders", Status: AuditExecuted})
	dispatcher.Record(AuditRecord{Endpoint: "GET /ws/buyback/v1/orders", Status: AuditQueued})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sink.statuses()) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if got := sink.statuses(); len(got) != 2 {
		t.Fatalf("expected 2 records, got %v", got)
	}
	if dispatcher.Dropped() != 0 {
		t.Fatalf("no records should drop under capacity")
	}
}

func TestAuditDispatcher_DropsOnOverflowWithoutBlocking(t *testing.T) {
	t.Parallel()

	metrics := observability.NewInMemoryMetrics()
	dispatcher := NewAuditDispatcher(&memSink{}, 2, nil, metrics)

	// No worker is draining; the third record must drop immediately.
	for i := 0; i < 3; i++ {
		dispatcher.Record(AuditRecord{Status: AuditQueued})
	}
	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected 1 dropped record, got %d", dispatcher.Dropped())
	}
	if metrics.Counter("audit_dropped") != 1 {
		t.Fatalf("expected dropped counter")
	}
}

func TestAuditDispatcher_SinkFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	metrics := observability.NewInMemoryMetrics()
	sink := &memSink{fail: errors.New("sink down")}
	dispatcher := NewAuditDispatcher(sink, 8, nil, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Start(ctx)
	}()

	dispatcher.Record(AuditRecord{Status: AuditExecuted})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if metrics.Counter("audit_error") == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if metrics.Counter("audit_error") != 1 {
		t.Fatalf("expected one audit error counter")
	}
}

func TestAuditDispatcher_FlushesBufferedRecordsOnStop(t *testing.T) {
	t.Parallel()

	sink := &memSink{}
	dispatcher := NewAuditDispatcher(sink, 8, nil, nil)

	dispatcher.Record(AuditRecord{Status: AuditQueued})
	dispatcher.Record(AuditRecord{Status: AuditExecuted})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := dispatcher.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if got := sink.statuses(); len(got) != 2 {
		t.Fatalf("expected buffered records flushed on stop, got %v", got)
	}
}

func TestTeeSink_ReportsFirstErrorAfterAllSinks(t *testing.T) {
	t.Parallel()

	broken := &memSink{fail: errors.New("broken")}
	healthy := &memSink{}
	tee := TeeSink{broken, healthy}

	err := tee.Record(context.Background(), AuditRecord{Status: AuditExecuted})
	if err == nil || err.Error() != "broken" {
		t.Fatalf("expected first sink error, got %v", err)
	}
	if len(healthy.statuses()) != 1 {
		t.Fatalf("healthy sink must still receive the record")
	}
}

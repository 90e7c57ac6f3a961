package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/config"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/core"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/marketmock"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
)

func fastLimits() map[core.Category]core.LimitConfig {
	return map[core.Category]core.LimitConfig{
		core.CategoryGlobal:   {Capacity: 100, Interval: 50 * time.Millisecond},
		core.CategoryCatalog:  {Capacity: 100, Interval: 50 * time.Millisecond},
		core.CategoryOrders:   {Capacity: 100, Interval: 50 * time.Millisecond},
		core.CategoryListings: {Capacity: 100, Interval: 50 * time.Millisecond},
	}
}

func newTestApplication(t *testing.T, mock *httptest.Server, opts func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Config{
		Limits:         fastLimits(),
		MarketBaseURL:  mock.URL,
		HTTPClient:     mock.Client(),
		MaxAttempts:    2,
		DefaultMaxWait: 2 * time.Second,
		DrainTimeout:   time.Second,
		Metrics:        observability.NewInMemoryMetrics(),
	}
	if opts != nil {
		opts(&cfg)
	}
	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("unexpected application error: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	})
	return application
}

func TestApplication_SchedulesAgainstMarketplace(t *testing.T) {
	t.Parallel()

	mock := httptest.NewServer(marketmock.NewServer(marketmock.Options{}).Handler())
	defer mock.Close()

	application := newTestApplication(t, mock, nil)
	if !application.Ready() {
		t.Fatalf("application should be ready after start")
	}

	resp, err := application.Controller().Schedule(context.Background(), &core.RequestDescriptor{
		Method: "GET",
		Path:   "/ws/buyback/v1/orders",
	}, core.ScheduleOptions{Priority: core.PriorityHigh})
	if err != nil {
		t.Fatalf("unexpected schedule error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from mock, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if application.AuditLog().Len() > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	recent := application.AuditLog().Recent(1)
	if len(recent) != 1 || recent[0].Status != core.AuditExecuted {
		t.Fatalf("expected an EXECUTED audit row, got %+v", recent)
	}
}

func TestApplication_Upstream429ExhaustsRetries(t *testing.T) {
	t.Parallel()

	// The mock admits one orders call per ten minutes; every retry 429s.
	mock := httptest.NewServer(marketmock.NewServer(marketmock.Options{
		OrdersPerSecond: 1.0 / 600,
	}).Handler())
	defer mock.Close()

	application := newTestApplication(t, mock, nil)
	desc := &core.RequestDescriptor{Method: "GET", Path: "/ws/buyback/v1/orders"}

	if _, err := application.Controller().Schedule(context.Background(), desc, core.ScheduleOptions{}); err != nil {
		t.Fatalf("first schedule should pass: %v", err)
	}

	_, err := application.Controller().Schedule(context.Background(), desc, core.ScheduleOptions{})
	if core.CodeOf(err) != core.CodeRateLimitExhausted {
		t.Fatalf("expected exhausted error, got %v", err)
	}
}

func TestApplication_HTTPTransportEndToEnd(t *testing.T) {
	t.Parallel()

	mock := httptest.NewServer(marketmock.NewServer(marketmock.Options{}).Handler())
	defer mock.Close()

	application := newTestApplication(t, mock, func(cfg *config.Config) {
		cfg.EnableHTTP = true
		cfg.HTTPListenAddr = ":0"
	})
	handler, err := application.HTTPTransport().Handler()
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	body := `{"method":"GET","path":"/ws/buyback/v1/listings","priority":"critical"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/schedule", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/buckets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("buckets endpoint failed: %d", rec.Code)
	}
}

func TestApplication_ShutdownRefusesNewWork(t *testing.T) {
	t.Parallel()

	mock := httptest.NewServer(marketmock.NewServer(marketmock.Options{}).Handler())
	defer mock.Close()

	cfg := config.Config{
		Limits:        fastLimits(),
		MarketBaseURL: mock.URL,
		HTTPClient:    mock.Client(),
		DrainTimeout:  time.Second,
	}
	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("unexpected application error: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if application.Ready() {
		t.Fatalf("application must not report ready after shutdown")
	}

	_, err = application.Controller().Schedule(context.Background(), &core.RequestDescriptor{
		Method: "GET",
		Path:   "/ws/buyback/v1/orders",
	}, core.ScheduleOptions{})
	if core.CodeOf(err) != core.CodeUnavailable {
		t.Fatalf("expected unavailable after shutdown, got %v", err)
	}
}

func TestNewApplication_RequiresRedisAddrWhenEnabled(t *testing.T) {
	t.Parallel()

	_, err := NewApplication(config.Config{
		MarketBaseURL:    "https://example.test",
		EnableRedisAudit: true,
	})
	if core.CodeOf(err) != core.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

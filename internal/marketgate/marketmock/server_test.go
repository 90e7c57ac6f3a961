package marketmock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestServer_OrdersPaging(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{OrderCount: 25})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/buyback/v1/orders?page=2&page_size=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var page struct {
		Count   int `json:"count"`
		Page    int `json:"page"`
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("cannot decode page: %v", err)
	}
	if page.Count != 25 || page.Page != 2 || len(page.Results) != 10 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Results[0].ID != "BB-0011" {
		t.Fatalf("unexpected first id on page 2: %s", page.Results[0].ID)
	}
}

func TestServer_OrderStateUpdate(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ws/buyback/v1/orders/BB-0001", strings.NewReader(`{"state":"accepted"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/buyback/v1/orders/BB-0001", nil))
	var got struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("cannot decode order: %v", err)
	}
	if got.State != "accepted" {
		t.Fatalf("state update not applied: %s", got.State)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/buyback/v1/orders/NOPE", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown order should 404, got %d", rec.Code)
	}
}

func TestServer_ListingsCreateAndPatch(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ws/buyback/v1/listings", strings.NewReader(`{"sku":"SKU-NEW","price_cent":9900,"quantity":2}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("cannot decode listing: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/ws/buyback/v1/listings/"+created.ID, strings.NewReader(`{"quantity":7}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var patched struct {
		Quantity int `json:"quantity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &patched); err != nil {
		t.Fatalf("cannot decode listing: %v", err)
	}
	if patched.Quantity != 7 {
		t.Fatalf("patch not applied: %d", patched.Quantity)
	}
}

func TestServer_ThrottlesWithProblemJSON(t *testing.T) {
	t.Parallel()

	// One request per 10 minutes: the second call in a row must throttle.
	server := NewServer(Options{OrdersPerSecond: 1.0 / 600, RetryAfter: 2 * time.Second})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/buyback/v1/orders", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/buyback/v1/orders", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should throttle, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/problem+json" {
		t.Fatalf("expected problem json, got %s", got)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected Retry-After of 2s, got %q", rec.Header().Get("Retry-After"))
	}
	if server.Throttled() != 1 || server.Requests() != 1 {
		t.Fatalf("unexpected counters: requests=%d throttled=%d", server.Requests(), server.Throttled())
	}
}

func TestServer_BasicAuth(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{BasicUser: "merchant", BasicPass: "s3cret"})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/buyback/v1/orders", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing credentials should 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/buyback/v1/orders", nil)
	req.SetBasicAuth("merchant", "s3cret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid credentials should pass, got %d", rec.Code)
	}
}

// Package marketmock provides a fake marketplace backend for local runs and tests.
package marketmock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Options configures the mock marketplace server.
type Options struct {
	// OrdersPerSecond paces the orders endpoints. Zero disables pacing.
	OrdersPerSecond float64
	// ListingsPerSecond paces the listings endpoints. Zero disables pacing.
	ListingsPerSecond float64
	// RetryAfter is advertised on throttled responses.
	RetryAfter time.Duration
	// BasicUser and BasicPass enable basic auth checks when both are set.
	BasicUser string
	BasicPass string
	// OrderCount seeds the fake order book.
	OrderCount int
}

type order struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Product   string `json:"product"`
	PriceCent int64  `json:"price_cent"`
}

type listing struct {
	ID        string `json:"id"`
	SKU       string `json:"sku"`
	PriceCent int64  `json:"price_cent"`
	Quantity  int    `json:"quantity"`
}

// Server is an in-process stand-in for the marketplace API.
type Server struct {
	opts          Options
	ordersLimiter *rate.Limiter
	listLimiter   *rate.Limiter

	mu       sync.Mutex
	orders   map[string]*order
	orderIDs []string
	listings map[string]*listing
	listIDs  []string

	requests  atomic.Int64
	throttled atomic.Int64
}

// NewServer seeds a mock marketplace with the given options.
func NewServer(opts Options) *Server {
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}
	if opts.OrderCount <= 0 {
		opts.OrderCount = 25
	}
	s := &Server{
		opts:     opts,
		orders:   make(map[string]*order),
		listings: make(map[string]*listing),
	}
	if opts.OrdersPerSecond > 0 {
		s.ordersLimiter = rate.NewLimiter(rate.Limit(opts.OrdersPerSecond), 1)
	}
	if opts.ListingsPerSecond > 0 {
		s.listLimiter = rate.NewLimiter(rate.Limit(opts.ListingsPerSecond), 1)
	}
	s.seed()
	return s
}

func (s *Server) seed() {
	for i := 1; i <= s.opts.OrderCount; i++ {
		id := fmt.Sprintf("BB-%04d", i)
		s.orders[id] = &order{
			ID:        id,
			State:     "pending",
			Product:   "smartphone",
			PriceCent: int64(10000 + i*37),
		}
		s.orderIDs = append(s.orderIDs, id)
	}
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("L-%03d", i)
		s.listings[id] = &listing{
			ID:        id,
			SKU:       fmt.Sprintf("SKU-%03d", i),
			PriceCent: int64(5000 + i*91),
			Quantity:  i,
		}
		s.listIDs = append(s.listIDs, id)
	}
}

// Requests reports how many requests were accepted.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Throttled reports how many requests were rejected with 429.
func (s *Server) Throttled() int64 { return s.throttled.Load() }

// Handler returns the HTTP handler for the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/buyback/v1/orders", s.handleOrders)
	mux.HandleFunc("/ws/buyback/v1/orders/", s.handleOrderByID)
	mux.HandleFunc("/ws/buyback/v1/listings", s.handleListings)
	mux.HandleFunc("/ws/buyback/v1/listings/", s.handleListingByID)
	return mux
}

func (s *Server) admit(w http.ResponseWriter, r *http.Request, limiter *rate.Limiter) bool {
	if !s.checkAuth(w, r) {
		return false
	}
	if limiter != nil && !limiter.Allow() {
		s.throttled.Add(1)
		w.Header().Set("Retry-After", strconv.Itoa(int(s.opts.RetryAfter/time.Second)))
		writeProblem(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	s.requests.Add(1)
	return true
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.BasicUser == "" && s.opts.BasicPass == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok || user != s.opts.BasicUser || pass != s.opts.BasicPass {
		writeProblem(w, http.StatusUnauthorized, "invalid credentials")
		return false
	}
	return true
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.admit(w, r, s.ordersLimiter) {
		return
	}
	page, pageSize := paging(r)
	s.mu.Lock()
	total := len(s.orderIDs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	results := make([]order, 0, end-start)
	for _, id := range s.orderIDs[start:end] {
		results = append(results, *s.orders[id])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   total,
		"page":    page,
		"results": results,
	})
}

func (s *Server) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, s.ordersLimiter) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/ws/buyback/v1/orders/")
	id = strings.TrimSuffix(id, "/")
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		found, ok := s.orders[id]
		var snapshot order
		if ok {
			snapshot = *found
		}
		s.mu.Unlock()
		if !ok {
			writeProblem(w, http.StatusNotFound, "order not found")
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	case http.MethodPost, http.MethodPatch:
		var body struct {
			State string `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.State == "" {
			writeProblem(w, http.StatusBadRequest, "invalid state payload")
			return
		}
		s.mu.Lock()
		found, ok := s.orders[id]
		var snapshot order
		if ok {
			found.State = body.State
			snapshot = *found
		}
		s.mu.Unlock()
		if !ok {
			writeProblem(w, http.StatusNotFound, "order not found")
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, s.listLimiter) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		page, pageSize := paging(r)
		s.mu.Lock()
		total := len(s.listIDs)
		start := (page - 1) * pageSize
		if start > total {
			start = total
		}
		end := start + pageSize
		if end > total {
			end = total
		}
		results := make([]listing, 0, end-start)
		for _, id := range s.listIDs[start:end] {
			results = append(results, *s.listings[id])
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   total,
			"page":    page,
			"results": results,
		})
	case http.MethodPost:
		var body listing
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SKU == "" {
			writeProblem(w, http.StatusBadRequest, "invalid listing payload")
			return
		}
		s.mu.Lock()
		body.ID = fmt.Sprintf("L-%03d", len(s.listIDs)+1)
		s.listings[body.ID] = &body
		s.listIDs = append(s.listIDs, body.ID)
		snapshot := body
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, snapshot)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListingByID(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, s.listLimiter) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/ws/buyback/v1/listings/")
	id = strings.TrimSuffix(id, "/")
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		found, ok := s.listings[id]
		var snapshot listing
		if ok {
			snapshot = *found
		}
		s.mu.Unlock()
		if !ok {
			writeProblem(w, http.StatusNotFound, "listing not found")
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	case http.MethodPatch:
		var body struct {
			PriceCent *int64 `json:"price_cent"`
			Quantity  *int   `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid listing payload")
			return
		}
		s.mu.Lock()
		found, ok := s.listings[id]
		var snapshot listing
		if ok {
			if body.PriceCent != nil {
				found.PriceCent = *body.PriceCent
			}
			if body.Quantity != nil {
				found.Quantity = *body.Quantity
			}
			snapshot = *found
		}
		s.mu.Unlock()
		if !ok {
			writeProblem(w, http.StatusNotFound, "listing not found")
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func paging(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 10
	if value := r.URL.Query().Get("page"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if value := r.URL.Query().Get("page_size"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}
	return page, pageSize
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"detail": detail,
	})
}

// Package grpctransport provides the ops gRPC transport.
package grpctransport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
)

// GRPCTransport serves the standard gRPC health service so fleet
// tooling can probe readiness without a bespoke proto.
type GRPCTransport struct {
	addr   string
	lis    net.Listener
	srv    *grpc.Server
	hs     *health.Server
	ready  func() bool
	cfg    GRPCTransportConfig
	stop   chan struct{}
	stopMu sync.Mutex
	mu     sync.Mutex
}

// GRPCTransportConfig configures the gRPC transport.
type GRPCTransportConfig struct {
	KeepAlive    time.Duration
	PollInterval time.Duration
	Logger       observability.Logger
}

// NewGRPCTransport constructs a transport bound to an address.
func NewGRPCTransport(addr string, ready func() bool, cfg GRPCTransportConfig) *GRPCTransport {
	if addr == "" {
		addr = ":9090"
	}
	if ready == nil {
		ready = func() bool { return false }
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &GRPCTransport{addr: addr, ready: ready, cfg: cfg, stop: make(chan struct{})}
}

// SetListener overrides the listener, used by bufconn tests.
func (t *GRPCTransport) SetListener(lis net.Listener) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lis = lis
}

// Start begins serving gRPC requests.
func (t *GRPCTransport) Start() error {
	if t == nil {
		return errors.New("grpc transport is nil")
	}
	t.mu.Lock()
	listener := t.lis
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", t.addr)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		t.lis = listener
	}
	if t.srv == nil {
		t.srv = grpc.NewServer(
			grpc.ChainUnaryInterceptor(grpcLoggingInterceptor(t.cfg.Logger)),
			grpc.KeepaliveParams(keepalive.ServerParameters{Time: t.cfg.KeepAlive}),
		)
		t.hs = health.NewServer()
		healthpb.RegisterHealthServer(t.srv, t.hs)
	}
	srv := t.srv
	t.mu.Unlock()

	go t.pollReady()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown stops the gRPC server.
func (t *GRPCTransport) Shutdown(ctx context.Context) error {
	if t == nil {
		return errors.New("grpc transport is nil")
	}
	t.stopMu.Lock()
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	t.stopMu.Unlock()

	t.mu.Lock()
	srv := t.srv
	t.mu.Unlock()
	if srv == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.Stop()
		return ctx.Err()
	}
}

// pollReady mirrors application readiness into the health service.
func (t *GRPCTransport) pollReady() {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	t.updateStatus()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.updateStatus()
		}
	}
}

func (t *GRPCTransport) updateStatus() {
	t.mu.Lock()
	hs := t.hs
	t.mu.Unlock()
	if hs == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if t.ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", status)
}

func grpcLoggingInterceptor(logger observability.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger != nil {
			fields := map[string]any{
				"method":      info.FullMethod,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if err != nil {
				fields["error"] = err.Error()
				logger.Error("grpc request error", fields)
			} else {
				logger.Info("grpc request", fields)
			}
		}
		return resp, err
	}
}

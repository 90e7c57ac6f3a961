// Package app wires configuration into a running admission service.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/config"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/core"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/store/inmemory"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/store/redisstore"
	grpctransport "github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/transport/grpc"
	httptransport "github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/transport/http"
)

// Application assembles the controller, audit pipeline, and transports.
type Application struct {
	cfg        config.Config
	logger     observability.Logger
	metrics    observability.Metrics
	clock      core.Clock
	controller *core.Controller
	scheduler  *core.PriorityScheduler
	dispatcher *core.AuditDispatcher
	inflight   *core.InFlight
	auditLog   *inmemory.AuditLog
	httpT      *httptransport.HTTPTransport
	grpcT      *grpctransport.GRPCTransport
	rdb        *redis.Client

	ready  atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication validates the configuration and builds every component.
func NewApplication(cfg config.Config) (*Application, error) {
	if cfg.Limits == nil {
		cfg.Limits = core.DefaultLimits()
	}
	if cfg.Rules == nil {
		cfg.Rules = core.DefaultRules()
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewStdLogger(os.Stdout)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.AuditLogSize <= 0 {
		cfg.AuditLogSize = 1024
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	a := &Application{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
	}

	registry, err := core.NewBucketRegistry(cfg.Limits, a.clock.Now())
	if err != nil {
		return nil, err
	}
	classifier, err := core.NewClassifier(cfg.Rules)
	if err != nil {
		return nil, err
	}
	a.scheduler = core.NewPriorityScheduler(registry, a.clock)
	a.inflight = core.NewInFlight()

	a.auditLog = inmemory.NewAuditLog(cfg.AuditLogSize)
	sinks := core.TeeSink{a.auditLog}
	if cfg.Sink != nil {
		sinks = append(sinks, cfg.Sink)
	}
	if cfg.EnableRedisAudit {
		if cfg.RedisAddr == "" {
			return nil, core.Wrap(core.CodeConfiguration, "redis address is required when redis audit is enabled", nil)
		}
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		var opts []redisstore.Option
		if cfg.RedisStream != "" {
			opts = append(opts, redisstore.WithStream(cfg.RedisStream))
		}
		sinks = append(sinks, redisstore.NewAuditSink(a.rdb, opts...))
	}
	a.dispatcher = core.NewAuditDispatcher(sinks, cfg.AuditBuffer, a.logger, a.metrics)

	var breaker *core.Breaker
	if cfg.EnableBreaker {
		breaker = core.NewBreaker(cfg.Breaker, a.clock)
	}

	send := cfg.Sender
	if send == nil {
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}
		send, err = core.NewHTTPSender(client, cfg.MarketBaseURL)
		if err != nil {
			return nil, err
		}
	}
	executor, err := core.NewExecutor(send, registry, breaker, a.dispatcher, a.metrics, a.clock)
	if err != nil {
		return nil, err
	}

	a.controller, err = core.NewController(core.ControllerParams{
		Registry:       registry,
		Classifier:     classifier,
		Scheduler:      a.scheduler,
		Executor:       executor,
		Audit:          a.dispatcher,
		InFlight:       a.inflight,
		Clock:          a.clock,
		Logger:         a.logger,
		Metrics:        a.metrics,
		MaxAttempts:    cfg.MaxAttempts,
		DefaultCost:    cfg.DefaultCost,
		DefaultMaxWait: cfg.DefaultMaxWait,
	})
	if err != nil {
		return nil, err
	}

	if cfg.EnableHTTP {
		a.httpT = httptransport.NewHTTPTransport(cfg.HTTPListenAddr, a.Ready)
		a.httpT.Configure(httptransport.HTTPTransportConfig{
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
			IdleTimeout:  cfg.HTTPIdleTimeout,
			MaxBodyBytes: cfg.MaxBodyBytes,
			EnableAuth:   cfg.EnableAuth,
			AdminToken:   cfg.AdminToken,
			Logger:       a.logger,
			Metrics:      inMemory(a.metrics),
		})
		if err := a.httpT.ServeSchedule(a.controller); err != nil {
			return nil, err
		}
		if err := a.httpT.ServeAudit(a.auditLog); err != nil {
			return nil, err
		}
	}
	if cfg.EnableGRPC {
		a.grpcT = grpctransport.NewGRPCTransport(cfg.GRPCListenAddr, a.Ready, grpctransport.GRPCTransportConfig{
			KeepAlive: cfg.GRPCKeepAlive,
			Logger:    a.logger,
		})
	}
	return a, nil
}

// Start launches the dispatch loop, audit worker, and transports.
func (a *Application) Start(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.dispatcher.Start(runCtx); err != nil {
			a.logger.Error("audit dispatcher stopped", map[string]any{"error": err.Error()})
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.scheduler.Run(runCtx); err != nil {
			a.logger.Error("scheduler stopped", map[string]any{"error": err.Error()})
		}
	}()

	if a.httpT != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.httpT.Start(); err != nil {
				a.logger.Error("http transport stopped", map[string]any{"error": err.Error()})
			}
		}()
	}
	if a.grpcT != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.grpcT.Start(); err != nil {
				a.logger.Error("grpc transport stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	a.ready.Store(true)
	a.logger.Info("application started", map[string]any{
		"http": a.cfg.EnableHTTP,
		"grpc": a.cfg.EnableGRPC,
	})
	return nil
}

// Shutdown drains in-flight work then stops transports and workers.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), a.cfg.DrainTimeout)
		defer cancel()
	}
	a.ready.Store(false)
	a.inflight.Close()

	drainCtx, cancelDrain := context.WithTimeout(ctx, a.cfg.DrainTimeout)
	if err := a.inflight.Wait(drainCtx); err != nil {
		a.logger.Error("drain timed out", map[string]any{"error": err.Error()})
	}
	cancelDrain()

	var first error
	if a.httpT != nil {
		if err := a.httpT.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	if a.grpcT != nil {
		if err := a.grpcT.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.logger.Info("application stopped", nil)
	return first
}

// Ready reports whether the application accepts work.
func (a *Application) Ready() bool {
	if a == nil {
		return false
	}
	return a.ready.Load()
}

// Controller exposes the admission controller.
func (a *Application) Controller() *core.Controller {
	if a == nil {
		return nil
	}
	return a.controller
}

// AuditLog exposes the in-memory audit log.
func (a *Application) AuditLog() *inmemory.AuditLog {
	if a == nil {
		return nil
	}
	return a.auditLog
}

// HTTPTransport exposes the HTTP transport, nil when disabled.
func (a *Application) HTTPTransport() *httptransport.HTTPTransport {
	if a == nil {
		return nil
	}
	return a.httpT
}

func inMemory(m observability.Metrics) *observability.InMemoryMetrics {
	if im, ok := m.(*observability.InMemoryMetrics); ok {
		return im
	}
	return nil
}

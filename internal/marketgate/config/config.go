// Package config provides configuration for the application wiring.
package config

import (
	"net/http"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/core"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/observability"
)

// Config captures dependency and runtime settings. The limit table
// and classifier rules are immutable once the application is built.
type Config struct {
	Limits map[core.Category]core.LimitConfig
	Rules  []core.ClassifierRule

	MarketBaseURL  string
	MaxAttempts    int
	DefaultCost    int64
	DefaultMaxWait time.Duration
	AuditBuffer    int
	AuditLogSize   int

	EnableBreaker bool
	Breaker       core.BreakerOptions

	EnableHTTP       bool
	HTTPListenAddr   string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	MaxBodyBytes     int64
	EnableAuth       bool
	AdminToken       string

	EnableGRPC     bool
	GRPCListenAddr string
	GRPCKeepAlive  time.Duration

	EnableRedisAudit bool
	RedisAddr        string
	RedisStream      string

	DrainTimeout time.Duration

	Sender     core.Sender
	Sink       core.AuditSink
	Clock      core.Clock
	Logger     observability.Logger
	Metrics    observability.Metrics
	HTTPClient *http.Client
}

// Package config provides configuration loading.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/core"
)

// LoadOptions controls config loading.
type LoadOptions struct {
	ConfigPath string
	Args       []string
	Environ    []string
}

// LoadConfig loads configuration from defaults, file, env, and flags,
// in that precedence order.
func LoadConfig(opts LoadOptions) (*Config, error) {
	args := opts.Args
	if args == nil {
		args = os.Args[1:]
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	flagOverrides, err := parseFlagOverrides(args)
	if err != nil {
		return nil, err
	}

	configPath := opts.ConfigPath
	if flagOverrides.ConfigPath != nil {
		configPath = *flagOverrides.ConfigPath
	}

	cfg := defaultConfig()
	if configPath != "" {
		fileOverrides, err := loadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		applyFileOverrides(cfg, fileOverrides)
	}
	if err := applyEnvOverrides(cfg, environ); err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, flagOverrides)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Limits:         core.DefaultLimits(),
		Rules:          core.DefaultRules(),
		MarketBaseURL:  "https://preprod.backmarket.fr",
		MaxAttempts:    3,
		DefaultCost:    1,
		DefaultMaxWait: 30 * time.Second,
		AuditBuffer:    256,
		AuditLogSize:   1024,
		EnableBreaker:  true,
		Breaker: core.BreakerOptions{
			FailureThreshold: 5,
			OpenFor:          500 * time.Millisecond,
			HalfOpenMaxCalls: 2,
		},
		EnableHTTP:     true,
		HTTPListenAddr: ":8080",
		EnableGRPC:     false,
		GRPCListenAddr: ":9090",
		GRPCKeepAlive:  60 * time.Second,
		RedisStream:    "marketgate:audit",
		DrainTimeout:   5 * time.Second,
	}
}

type fileConfig struct {
	MarketBaseURL    *string                `json:"marketBaseURL"`
	Limits           map[string]fileLimit   `json:"limits"`
	Rules            []fileRule             `json:"rules"`
	MaxAttempts      *int                   `json:"maxAttempts"`
	DefaultCost      *int64                 `json:"defaultCost"`
	DefaultMaxWaitMs *int64                 `json:"defaultMaxWaitMs"`
	AuditBuffer      *int                   `json:"auditBuffer"`
	AuditLogSize     *int                   `json:"auditLogSize"`
	EnableHTTP       *bool                  `json:"enableHTTP"`
	HTTPListenAddr   *string                `json:"httpListenAddr"`
	EnableGRPC       *bool                  `json:"enableGRPC"`
	GRPCListenAddr   *string                `json:"grpcListenAddr"`
	EnableAuth       *bool                  `json:"enableAuth"`
	AdminToken       *string                `json:"adminToken"`
	EnableRedisAudit *bool                  `json:"enableRedisAudit"`
	RedisAddr        *string                `json:"redisAddr"`
	RedisStream      *string                `json:"redisStream"`
	DrainTimeoutMs   *int64                 `json:"drainTimeoutMs"`
}

type fileLimit struct {
	Capacity   int64 `json:"capacity"`
	IntervalMs int64 `json:"intervalMs"`
}

type fileRule struct {
	Method     string   `json:"method"`
	PathPrefix string   `json:"pathPrefix"`
	Categories []string `json:"categories"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("cannot open config file: " + path)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var overrides fileConfig
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, errors.New("cannot parse config file: " + path)
	}
	return &overrides, nil
}

func applyFileOverrides(cfg *Config, overrides *fileConfig) {
	if cfg == nil || overrides == nil {
		return
	}
	if overrides.MarketBaseURL != nil {
		cfg.MarketBaseURL = *overrides.MarketBaseURL
	}
	if len(overrides.Limits) > 0 {
		limits := make(map[core.Category]core.LimitConfig, len(overrides.Limits))
		for name, limit := range overrides.Limits {
			limits[core.Category(name)] = core.LimitConfig{
				Capacity: limit.Capacity,
				Interval: time.Duration(limit.IntervalMs) * time.Millisecond,
			}
		}
		cfg.Limits = limits
	}
	if len(overrides.Rules) > 0 {
		rules := make([]core.ClassifierRule, 0, len(overrides.Rules))
		for _, rule := range overrides.Rules {
			categories := make([]core.Category, 0, len(rule.Categories))
			for _, category := range rule.Categories {
				categories = append(categories, core.Category(category))
			}
			rules = append(rules, core.ClassifierRule{
				Method:     rule.Method,
				PathPrefix: rule.PathPrefix,
				Categories: categories,
			})
		}
		cfg.Rules = rules
	}
	if overrides.MaxAttempts != nil {
		cfg.MaxAttempts = *overrides.MaxAttempts
	}
	if overrides.DefaultCost != nil {
		cfg.DefaultCost = *overrides.DefaultCost
	}
	if overrides.DefaultMaxWaitMs != nil {
		cfg.DefaultMaxWait = time.Duration(*overrides.DefaultMaxWaitMs) * time.Millisecond
	}
	if overrides.AuditBuffer != nil {
		cfg.AuditBuffer = *overrides.AuditBuffer
	}
	if overrides.AuditLogSize != nil {
		cfg.AuditLogSize = *overrides.AuditLogSize
	}
	if overrides.EnableHTTP != nil {
		cfg.EnableHTTP = *overrides.EnableHTTP
	}
	if overrides.HTTPListenAddr != nil {
		cfg.HTTPListenAddr = *overrides.HTTPListenAddr
	}
	if overrides.EnableGRPC != nil {
		cfg.EnableGRPC = *overrides.EnableGRPC
	}
	if overrides.GRPCListenAddr != nil {
		cfg.GRPCListenAddr = *overrides.GRPCListenAddr
	}
	if overrides.EnableAuth != nil {
		cfg.EnableAuth = *overrides.EnableAuth
	}
	if overrides.AdminToken != nil {
		cfg.AdminToken = *overrides.AdminToken
	}
	if overrides.EnableRedisAudit != nil {
		cfg.EnableRedisAudit = *overrides.EnableRedisAudit
	}
	if overrides.RedisAddr != nil {
		cfg.RedisAddr = *overrides.RedisAddr
	}
	if overrides.RedisStream != nil {
		cfg.RedisStream = *overrides.RedisStream
	}
	if overrides.DrainTimeoutMs != nil {
		cfg.DrainTimeout = time.Duration(*overrides.DrainTimeoutMs) * time.Millisecond
	}
}

type flagOverrides struct {
	ConfigPath       *string
	MarketBaseURL    *string
	HTTPListenAddr   *string
	EnableHTTP       *bool
	GRPCListenAddr   *string
	EnableGRPC       *bool
	EnableAuth       *bool
	AdminToken       *string
	RedisAddr        *string
	EnableRedisAudit *bool
	MaxAttempts      *int
	AuditBuffer      *int
}

func parseFlagOverrides(args []string) (*flagOverrides, error) {
	fs := flag.NewFlagSet("marketgate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "config file path")
	marketBaseURL := fs.String("market_base_url", "", "marketplace base url")
	httpAddr := fs.String("http_addr", "", "http listen address")
	enableHTTP := fs.Bool("enable_http", false, "enable http")
	grpcAddr := fs.String("grpc_addr", "", "grpc listen address")
	enableGRPC := fs.Bool("enable_grpc", false, "enable grpc")
	enableAuth := fs.Bool("enable_auth", false, "enable auth")
	adminToken := fs.String("admin_token", "", "admin token")
	redisAddr := fs.String("redis_addr", "", "redis address")
	enableRedisAudit := fs.Bool("enable_redis_audit", false, "enable redis audit sink")
	maxAttempts := fs.Int("max_attempts", 0, "max send attempts")
	auditBuffer := fs.Int("audit_buffer", 0, "audit buffer size")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	overrides := &flagOverrides{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			overrides.ConfigPath = configPath
		case "market_base_url":
			overrides.MarketBaseURL = marketBaseURL
		case "http_addr":
			overrides.HTTPListenAddr = httpAddr
		case "enable_http":
			overrides.EnableHTTP = enableHTTP
		case "grpc_addr":
			overrides.GRPCListenAddr = grpcAddr
		case "enable_grpc":
			overrides.EnableGRPC = enableGRPC
		case "enable_auth":
			overrides.EnableAuth = enableAuth
		case "admin_token":
			overrides.AdminToken = adminToken
		case "redis_addr":
			overrides.RedisAddr = redisAddr
		case "enable_redis_audit":
			overrides.EnableRedisAudit = enableRedisAudit
		case "max_attempts":
			overrides.MaxAttempts = maxAttempts
		case "audit_buffer":
			overrides.AuditBuffer = auditBuffer
		}
	})
	return overrides, nil
}

func applyFlagOverrides(cfg *Config, overrides *flagOverrides) {
	if cfg == nil || overrides == nil {
		return
	}
	if overrides.MarketBaseURL != nil {
		cfg.MarketBaseURL = *overrides.MarketBaseURL
	}
	if overrides.HTTPListenAddr != nil {
		cfg.HTTPListenAddr = *overrides.HTTPListenAddr
	}
	if overrides.EnableHTTP != nil {
		cfg.EnableHTTP = *overrides.EnableHTTP
	}
	if overrides.GRPCListenAddr != nil {
		cfg.GRPCListenAddr = *overrides.GRPCListenAddr
	}
	if overrides.EnableGRPC != nil {
		cfg.EnableGRPC = *overrides.EnableGRPC
	}
	if overrides.EnableAuth != nil {
		cfg.EnableAuth = *overrides.EnableAuth
	}
	if overrides.AdminToken != nil {
		cfg.AdminToken = *overrides.AdminToken
	}
	if overrides.RedisAddr != nil {
		cfg.RedisAddr = *overrides.RedisAddr
	}
	if overrides.EnableRedisAudit != nil {
		cfg.EnableRedisAudit = *overrides.EnableRedisAudit
	}
	if overrides.MaxAttempts != nil {
		cfg.MaxAttempts = *overrides.MaxAttempts
	}
	if overrides.AuditBuffer != nil {
		cfg.AuditBuffer = *overrides.AuditBuffer
	}
}

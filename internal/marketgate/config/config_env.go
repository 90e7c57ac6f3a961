// Package config provides environment config overrides.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

func applyEnvOverrides(cfg *Config, environ []string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	values := envMap(environ)
	if value, ok := values["MARKETGATE_BASE_URL"]; ok {
		cfg.MarketBaseURL = value
	}
	if value, ok := values["MARKETGATE_ENABLE_HTTP"]; ok {
		parsed, err := parseBoolEnv("MARKETGATE_ENABLE_HTTP", value)
		if err != nil {
			return err
		}
		cfg.EnableHTTP = parsed
	}
	if value, ok := values["MARKETGATE_HTTP_ADDR"]; ok {
		cfg.HTTPListenAddr = value
	}
	if value, ok := values["MARKETGATE_ENABLE_GRPC"]; ok {
		parsed, err := parseBoolEnv("MARKETGATE_ENABLE_GRPC", value)
		if err != nil {
			return err
		}
		cfg.EnableGRPC = parsed
	}
	if value, ok := values["MARKETGATE_GRPC_ADDR"]; ok {
		cfg.GRPCListenAddr = value
	}
	if value, ok := values["MARKETGATE_ENABLE_AUTH"]; ok {
		parsed, err := parseBoolEnv("MARKETGATE_ENABLE_AUTH", value)
		if err != nil {
			return err
		}
		cfg.EnableAuth = parsed
	}
	if value, ok := values["MARKETGATE_ADMIN_TOKEN"]; ok {
		cfg.AdminToken = value
	}
	if value, ok := values["MARKETGATE_ENABLE_REDIS_AUDIT"]; ok {
		parsed, err := parseBoolEnv("MARKETGATE_ENABLE_REDIS_AUDIT", value)
		if err != nil {
			return err
		}
		cfg.EnableRedisAudit = parsed
	}
	if value, ok := values["MARKETGATE_REDIS_ADDR"]; ok {
		cfg.RedisAddr = value
	}
	if value, ok := values["MARKETGATE_REDIS_STREAM"]; ok {
		cfg.RedisStream = value
	}
	if value, ok := values["MARKETGATE_MAX_ATTEMPTS"]; ok {
		parsed, err := parseIntEnv("MARKETGATE_MAX_ATTEMPTS", value)
		if err != nil {
			return err
		}
		cfg.MaxAttempts = int(parsed)
	}
	if value, ok := values["MARKETGATE_DEFAULT_MAX_WAIT_MS"]; ok {
		parsed, err := parseIntEnv("MARKETGATE_DEFAULT_MAX_WAIT_MS", value)
		if err != nil {
			return err
		}
		cfg.DefaultMaxWait = time.Duration(parsed) * time.Millisecond
	}
	if value, ok := values["MARKETGATE_AUDIT_BUFFER"]; ok {
		parsed, err := parseIntEnv("MARKETGATE_AUDIT_BUFFER", value)
		if err != nil {
			return err
		}
		cfg.AuditBuffer = int(parsed)
	}
	if value, ok := values["MARKETGATE_BREAKER_FAILURE_THRESHOLD"]; ok {
		parsed, err := parseIntEnv("MARKETGATE_BREAKER_FAILURE_THRESHOLD", value)
		if err != nil {
			return err
		}
		cfg.Breaker.FailureThreshold = parsed
	}
	if value, ok := values["MARKETGATE_BREAKER_OPEN_MS"]; ok {
		parsed, err := parseIntEnv("MARKETGATE_BREAKER_OPEN_MS", value)
		if err != nil {
			return err
		}
		cfg.Breaker.OpenFor = time.Duration(parsed) * time.Millisecond
	}
	return nil
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string)
	for _, entry := range environ {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = parts[1]
	}
	return values
}

func parseBoolEnv(name, value string) (bool, error) {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, errors.New("invalid env value for " + name)
	}
	return parsed, nil
}

func parseIntEnv(name, value string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.New("invalid env value for " + name)
	}
	return parsed, nil
}

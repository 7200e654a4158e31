// Package config validates process environment variables into a typed
// Config, following the teacher's "accumulate every error, then fail once"
// validation style.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"go.uber.org/zap"
)

// Config holds validated environment configuration for the presence server.
type Config struct {
	Port string

	RegistryServiceURL   string
	RegistryServiceToken string
	RegistrySyncInterval int // milliseconds

	OfficeBaseDomain   string
	DefaultAgentVoiceID string

	OfficeID string // REGISTRY_OFFICE_ID / OFFICE_ID / SKYOFFICE_OFFICE_ID fallback

	ChatBridgeURL string

	DataDir string

	AWSRegion string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	OtelCollectorAddr string

	AllowedOrigins string

	AdminRateLimitGlobal string
	AdminRateLimitRooms  string
	AdminRateLimitNpcs   string

	GoEnv    string
	LogLevel string
}

// ValidateEnv validates required environment variables and fills in defaults
// for optional ones. It returns every validation error found, not just the
// first one.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = getEnvOrDefault("PORT", "3010")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.RegistryServiceURL = firstNonEmptyEnv(
		"REGISTRY_SERVICE_URL", "REGISTRY_SERVICE_ORIGIN",
		"REGISTRY_SERVICE_BASE_URL", "REGISTRY_API_URL",
	)
	if cfg.RegistryServiceURL == "" {
		errs = append(errs, "one of REGISTRY_SERVICE_URL, REGISTRY_SERVICE_ORIGIN, REGISTRY_SERVICE_BASE_URL, REGISTRY_API_URL is required")
	}

	cfg.RegistryServiceToken = firstNonEmptyEnv("REGISTRY_SERVICE_TOKEN", "REGISTRY_API_TOKEN")

	cfg.RegistrySyncInterval = 60000
	if v := os.Getenv("REGISTRY_SYNC_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Sprintf("REGISTRY_SYNC_INTERVAL_MS must be a positive integer (got %q)", v))
		} else {
			cfg.RegistrySyncInterval = n
		}
	}

	cfg.OfficeBaseDomain = getEnvOrDefault("OFFICE_BASE_DOMAIN", "office.xyz")
	cfg.DefaultAgentVoiceID = getEnvOrDefault("DEFAULT_AGENT_VOICE_ID", "agent_4901k6k9xg9qf4paratx1d9rkmwx")
	cfg.OfficeID = firstNonEmptyEnv("REGISTRY_OFFICE_ID", "OFFICE_ID", "SKYOFFICE_OFFICE_ID")
	cfg.ChatBridgeURL = getEnvOrDefault("CHAT_BRIDGE_URL", "http://localhost:3020")
	cfg.DataDir = getEnvOrDefault("DATA_DIR", ".")
	cfg.AWSRegion = os.Getenv("AWS_REGION")

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.OtelCollectorAddr = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg.AdminRateLimitGlobal = getEnvOrDefault("ADMIN_RATE_LIMIT_GLOBAL", "1000-M")
	cfg.AdminRateLimitRooms = getEnvOrDefault("ADMIN_RATE_LIMIT_ROOMS", "100-M")
	cfg.AdminRateLimitNpcs = getEnvOrDefault("ADMIN_RATE_LIMIT_NPCS", "200-M")

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func logValidatedConfig(cfg *Config) {
	ctx := context.Background()
	logging.Info(ctx, "environment configuration validated",
		zap.String("port", cfg.Port),
		zap.String("registry_service_url", cfg.RegistryServiceURL),
		zap.Int("registry_sync_interval_ms", cfg.RegistrySyncInterval),
		zap.String("office_base_domain", cfg.OfficeBaseDomain),
		zap.Bool("redis_enabled", cfg.RedisEnabled),
		zap.Bool("tracing_enabled", cfg.OtelCollectorAddr != ""),
		zap.String("go_env", cfg.GoEnv),
		zap.String("registry_service_token", logging.RedactSecret(cfg.RegistryServiceToken)),
	)
}

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func firstNonEmptyEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

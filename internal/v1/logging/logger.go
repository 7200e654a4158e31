// Package logging wraps zap with context-carried correlation fields so that
// room, office, and agent identifiers show up on every log line without
// every call site threading them through by hand.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	RoomIDKey        contextKey = "room_id"
	NamespaceKey     contextKey = "namespace"
	AgentIDKey       contextKey = "agent_id"
	OfficeIDKey      contextKey = "office_id"
)

// Initialize sets up the global logger based on the environment. Safe to call
// more than once; only the first call takes effect.
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var cfg zap.Config
		if development {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}

		logger, err = cfg.Build(zap.AddCallerSkip(1))
	})
	return err
}

// GetLogger returns the global logger, falling back to a development logger
// for callers (tests, early startup) that run before Initialize.
func GetLogger() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Info(msg, appendContextFields(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, appendContextFields(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Error(msg, appendContextFields(ctx, fields)...)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, appendContextFields(ctx, fields)...)
}

func appendContextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if v, ok := ctx.Value(CorrelationIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String("correlation_id", v))
	}
	if v, ok := ctx.Value(RoomIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String("room_id", v))
	}
	if v, ok := ctx.Value(NamespaceKey).(string); ok && v != "" {
		fields = append(fields, zap.String("namespace", v))
	}
	if v, ok := ctx.Value(AgentIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String("agent_id", v))
	}
	if v, ok := ctx.Value(OfficeIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String("office_id", v))
	}
	fields = append(fields, zap.String("service", "skyoffice-presence"))
	return fields
}

// RedactSecret shows only the first 4 characters of a secret value, for
// log lines that must prove a secret was loaded without leaking it.
func RedactSecret(secret string) string {
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}

// RedactEmail masks the local part of an email address.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	for i, c := range email {
		if c == '@' {
			if i == 0 {
				return "***" + email[i:]
			}
			return "***" + email[i:]
		}
	}
	return "***"
}

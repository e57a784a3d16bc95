// Package observability provides logging and metrics for the Antbox backend.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured for the given environment.
// Production uses JSON output at Info level; anything else gets the
// development console encoder at Debug level.
func NewLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return cfg.Build()
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}

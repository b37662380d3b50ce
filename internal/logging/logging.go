// Package logging builds the process logger from configuration. Components
// never construct loggers themselves; they receive a *zap.Logger (usually
// Named per component) through their constructors.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"wrdsquery/internal/config"
)

// New builds a zap logger from the logging config.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "", "info":
		zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn", "warning":
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zc.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level: %q", cfg.Level)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

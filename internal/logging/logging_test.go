package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"wrdsquery/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, -2},
		{"", zapcore.InfoLevel, zapcore.DebugLevel},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			logger, err := New(config.LoggingConfig{Level: tt.level})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer logger.Sync()

			if !logger.Core().Enabled(tt.enabled) {
				t.Errorf("level %s not enabled", tt.enabled)
			}
			if tt.muted >= zapcore.DebugLevel && logger.Core().Enabled(tt.muted) {
				t.Errorf("level %s unexpectedly enabled", tt.muted)
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewJSONFormat(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Sync()
}

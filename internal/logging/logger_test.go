package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iwvelando/payoff/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		override  string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"Defaults", config.LoggingConfig{}, "", zapcore.InfoLevel, false},
		{"Config level", config.LoggingConfig{Level: "warn", Format: "console"}, "", zapcore.WarnLevel, false},
		{"Override wins", config.LoggingConfig{Level: "error"}, "debug", zapcore.DebugLevel, false},
		{"Invalid level", config.LoggingConfig{Level: "loud"}, "", zapcore.InfoLevel, true},
		{"Invalid format", config.LoggingConfig{Format: "xml"}, "", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg, tt.override)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewLogger() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			if !logger.Core().Enabled(tt.wantLevel) {
				t.Errorf("logger does not enable %s", tt.wantLevel)
			}
			if tt.wantLevel > zapcore.DebugLevel && logger.Core().Enabled(tt.wantLevel-1) {
				t.Errorf("logger enables level below %s", tt.wantLevel)
			}
		})
	}
}

func TestNewLoggerOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "payoff.log")
	logger, err := NewLogger(config.LoggingConfig{OutputFile: path}, "")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output in file")
	}
}

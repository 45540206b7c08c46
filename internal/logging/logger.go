// Package logging builds zap loggers from configuration.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iwvelando/payoff/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger based on configuration and CLI override.
func NewLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// CLI override takes precedence
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Fail early if the file is not writable
		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		cfg.OutputPaths = []string{loggingConfig.OutputFile}
		cfg.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return cfg.Build()
}

// ParseLevel maps a level name onto a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

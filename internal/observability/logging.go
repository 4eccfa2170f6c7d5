// Package observability builds the tracker's zap loggers and HTTP request
// logging.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/tracker/internal/config"
)

// AppName is attached to every log line as "app".
const AppName = "tracker"

// NewLogger builds a logger from cfg. The json format uses zap's production
// encoder without sampling so every encounter command is kept; console uses
// the development encoder with stack traces only from error level.
//
// Precondition: cfg passed config validation.
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	var stackLevel zapcore.Level
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
		zapCfg.Sampling = nil
		stackLevel = zapcore.ErrorLevel
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
		stackLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]any{"app": AppName}

	logger, err := zapCfg.Build(zap.AddStacktrace(stackLevel))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Component returns logger tagged with the component name.
func Component(logger *zap.Logger, name string) *zap.Logger {
	return logger.With(zap.String("component", name))
}

package observ

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger: JSON in production, console
// otherwise. An unknown level falls back to info and says so.
func NewLogger(env, level string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	zapLevel, levelErr := zapcore.ParseLevel(level)
	if levelErr != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.InitialFields = map[string]any{"service": "community"}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	if levelErr != nil {
		logger.Warn("unknown log level, using info", zap.String("level", level))
	}
	return logger, nil
}

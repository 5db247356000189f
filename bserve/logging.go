package bserve

import (
	"github.com/advdv/bflow"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured from the environment.
// Uses JSON encoding; BFLOW_LOG_LEVEL controls the level (debug, info, warn, error).
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.logLevel())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogSystemError(err error) {
	l.Logger.Error("system error", zap.Error(err))
}

func (l zapLogger) LogFinishError(err error) {
	l.Logger.Warn("error while finishing response", zap.Error(err))
}

// NewZapLogger adapts l to receive the errors of a [bflow.App].
func NewZapLogger(l *zap.Logger) bflow.Logger {
	return zapLogger{l.Named("bflow")}
}

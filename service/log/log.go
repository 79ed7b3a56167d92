package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var (
	defaultLogger *zap.Logger
	defaultOnce   sync.Once
)

// Default returns the process-wide logger, creating it on first use.
// The level can be lowered to debug with LOG_LEVEL=debug.
func Default() *zap.Logger {
	defaultOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if os.Getenv("LOG_LEVEL") == "debug" {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		if defaultLogger, err = cfg.Build(); err != nil {
			defaultLogger = zap.NewNop()
		}
	})
	return defaultLogger
}

// Logger returns the logger attached to the context, or the default logger.
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return Default()
}

// With returns a context whose logger carries the given key/value.
func With(ctx context.Context, key string, value interface{}) context.Context {
	return context.WithValue(ctx, loggerKey{}, Logger(ctx).With(zap.Any(key, value)))
}

// Fatal logs with the default logger and exits.
func Fatal(msg string, fields ...zap.Field) {
	Default().Fatal(msg, fields...)
}

// Package logging wraps zap behind a small interface so packages can take a
// Logger without binding to a concrete implementation, and tests can pass a
// no-op.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface used across the service.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	Sync() error
}

type zapLogger struct {
	inner *zap.Logger
}

// NewLogger builds a logger for the given environment ("development" gets a
// colored console encoder, anything else the production JSON encoder). An
// unparseable level falls back to info.
func NewLogger(environment, logLevel string) (Logger, error) {
	cfg := buildConfig(environment, logLevel)

	built, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}
	return &zapLogger{inner: built}, nil
}

func buildConfig(environment, logLevel string) zap.Config {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// Sampling keeps a dispatch storm from flooding the log sink.
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg
}

// NewDevelopmentLogger returns a console logger at debug level.
func NewDevelopmentLogger() (Logger, error) {
	return NewLogger("development", "debug")
}

// NewProductionLogger returns a JSON logger at info level.
func NewProductionLogger() (Logger, error) {
	return NewLogger("production", "info")
}

// NewFromEnv builds a logger from ENVIRONMENT and LOG_LEVEL, defaulting to
// production/info.
func NewFromEnv() (Logger, error) {
	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "production"
	}
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	return NewLogger(environment, logLevel)
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.inner.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.inner.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.inner.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.inner.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.inner.Fatal(msg, fields...) }

// With returns a child logger with the fields permanently attached.
func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{inner: l.inner.With(fields...)}
}

// Sync flushes buffered entries; call before exit.
func (l *zapLogger) Sync() error { return l.inner.Sync() }

// NoOpLogger discards everything. Tests use it to silence components.
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(string, ...zap.Field) {}
func (l *NoOpLogger) Info(string, ...zap.Field)  {}
func (l *NoOpLogger) Warn(string, ...zap.Field)  {}
func (l *NoOpLogger) Error(string, ...zap.Field) {}
func (l *NoOpLogger) Fatal(string, ...zap.Field) {}
func (l *NoOpLogger) With(...zap.Field) Logger   { return l }
func (l *NoOpLogger) Sync() error                { return nil }

// NewNoOpLogger returns a logger that does nothing.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

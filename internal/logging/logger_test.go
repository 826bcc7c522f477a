package logging

import (
	"os"
	"testing"

	"go.uber.org/zap"
)

func mustLogger(t *testing.T, environment, level string) Logger {
	t.Helper()
	logger, err := NewLogger(environment, level)
	if err != nil {
		t.Fatalf("expected no error building logger, got %v", err)
	}
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
	t.Cleanup(func() { _ = logger.Sync() })
	return logger
}

func TestNewLogger_BuildsForBothEnvironments(t *testing.T) {
	mustLogger(t, "development", "debug")
	mustLogger(t, "production", "info")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	mustLogger(t, "production", "shouting")
}

func TestConvenienceConstructors_ReturnWorkingLoggers(t *testing.T) {
	dev, err := NewDevelopmentLogger()
	if err != nil || dev == nil {
		t.Fatalf("development constructor failed: logger=%v err=%v", dev, err)
	}
	defer dev.Sync()

	prod, err := NewProductionLogger()
	if err != nil || prod == nil {
		t.Fatalf("production constructor failed: logger=%v err=%v", prod, err)
	}
	defer prod.Sync()
}

func TestNewFromEnv_HonorsEnvironmentVariables(t *testing.T) {
	// Arrange
	originalEnvironment := os.Getenv("ENVIRONMENT")
	originalLogLevel := os.Getenv("LOG_LEVEL")
	defer func() {
		os.Setenv("ENVIRONMENT", originalEnvironment)
		os.Setenv("LOG_LEVEL", originalLogLevel)
	}()

	os.Setenv("ENVIRONMENT", "development")
	os.Setenv("LOG_LEVEL", "debug")

	// Act
	logger, err := NewFromEnv()

	// Assert
	if err != nil || logger == nil {
		t.Fatalf("expected a logger, got logger=%v err=%v", logger, err)
	}
	_ = logger.Sync()
}

func TestNewFromEnv_DefaultsWhenUnset(t *testing.T) {
	// Arrange
	originalEnvironment := os.Getenv("ENVIRONMENT")
	originalLogLevel := os.Getenv("LOG_LEVEL")
	defer func() {
		os.Setenv("ENVIRONMENT", originalEnvironment)
		os.Setenv("LOG_LEVEL", originalLogLevel)
	}()

	os.Unsetenv("ENVIRONMENT")
	os.Unsetenv("LOG_LEVEL")

	// Act
	logger, err := NewFromEnv()

	// Assert
	if err != nil || logger == nil {
		t.Fatalf("expected a logger, got logger=%v err=%v", logger, err)
	}
	_ = logger.Sync()
}

func TestZapLogger_AllLevelsLogWithoutPanic(t *testing.T) {
	logger := mustLogger(t, "production", "debug")

	logger.Debug("debug message", zap.String("key", "value"))
	logger.Info("info message", zap.String("key", "value"))
	logger.Warn("warn message", zap.String("key", "value"))
	logger.Error("error message", zap.String("key", "value"))
}

func TestZapLogger_WithReturnsIndependentChild(t *testing.T) {
	logger := mustLogger(t, "production", "info")

	child := logger.With(zap.String("request_id", "req-1"))
	if child == nil {
		t.Fatal("expected a non-nil child logger")
	}
	child.Info("message through child")
}

func TestNoOpLogger_SwallowsEverything(t *testing.T) {
	logger := NewNoOpLogger()

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("dropped")
	logger.Error("dropped")

	if err := logger.Sync(); err != nil {
		t.Errorf("expected nil from Sync, got %v", err)
	}
}

func TestNoOpLogger_WithReturnsSameInstance(t *testing.T) {
	logger := &NoOpLogger{}
	if child := logger.With(zap.String("key", "value")); child != logger {
		t.Error("expected With to return the same no-op instance")
	}
}

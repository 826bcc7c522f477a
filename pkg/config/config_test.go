package config

import (
	"os"
	"testing"
	"time"
)

var configVars = []string{
	"ENVIRONMENT", "LOG_LEVEL", "API_PORT", "CORS_ORIGINS",
	"DATABASE_URL", "REDIS_ADDR", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW_SECONDS",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "SWEEP_SCHEDULE", "TASK_SCHEDULE",
}

func stashEnv(t *testing.T) {
	t.Helper()
	for _, key := range configVars {
		original, wasSet := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if wasSet {
				os.Setenv(key, original)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}

func TestFromEnv_WhenAllVariablesSet_ThenReturnsConfigWithSetValues(t *testing.T) {
	// Arrange
	stashEnv(t)
	os.Setenv("ENVIRONMENT", "development")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("API_PORT", "9000")
	os.Setenv("CORS_ORIGINS", "http://localhost:3000,https://example.com")
	os.Setenv("DATABASE_URL", "user:pass@tcp(localhost:3306)/testdb")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	os.Setenv("RATE_LIMIT_MAX", "250")
	os.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	os.Setenv("KAFKA_BROKERS", "kafka1:9092,kafka2:9092")
	os.Setenv("KAFKA_TOPIC", "crm.events")
	os.Setenv("SWEEP_SCHEDULE", "@every 30m")
	os.Setenv("TASK_SCHEDULE", "@every 1m")

	// Act
	config := FromEnv()

	// Assert
	if config.Environment != "development" {
		t.Errorf("expected Environment to be 'development', got '%s'", config.Environment)
	}
	if config.LogLevel != "debug" {
		t.Errorf("expected LogLevel to be 'debug', got '%s'", config.LogLevel)
	}
	if config.APIPort != "9000" {
		t.Errorf("expected APIPort to be '9000', got '%s'", config.APIPort)
	}
	if len(config.CORSOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %d", len(config.CORSOrigins))
	}
	if config.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("expected first CORS origin to be 'http://localhost:3000', got '%s'", config.CORSOrigins[0])
	}
	if config.CORSOrigins[1] != "https://example.com" {
		t.Errorf("expected second CORS origin to be 'https://example.com', got '%s'", config.CORSOrigins[1])
	}
	if config.DatabaseURL != "user:pass@tcp(localhost:3306)/testdb" {
		t.Errorf("expected DatabaseURL to be 'user:pass@tcp(localhost:3306)/testdb', got '%s'", config.DatabaseURL)
	}
	if config.RedisAddr != "localhost:6379" {
		t.Errorf("expected RedisAddr to be 'localhost:6379', got '%s'", config.RedisAddr)
	}
	if config.RateLimitMax != 250 {
		t.Errorf("expected RateLimitMax to be 250, got %d", config.RateLimitMax)
	}
	if config.RateLimitWindow != 30*time.Second {
		t.Errorf("expected RateLimitWindow to be 30s, got %v", config.RateLimitWindow)
	}
	if len(config.KafkaBrokers) != 2 || config.KafkaBrokers[0] != "kafka1:9092" || config.KafkaBrokers[1] != "kafka2:9092" {
		t.Errorf("expected KafkaBrokers ['kafka1:9092' 'kafka2:9092'], got %v", config.KafkaBrokers)
	}
	if config.KafkaTopic != "crm.events" {
		t.Errorf("expected KafkaTopic to be 'crm.events', got '%s'", config.KafkaTopic)
	}
	if config.SweepSchedule != "@every 30m" {
		t.Errorf("expected SweepSchedule to be '@every 30m', got '%s'", config.SweepSchedule)
	}
	if config.TaskSchedule != "@every 1m" {
		t.Errorf("expected TaskSchedule to be '@every 1m', got '%s'", config.TaskSchedule)
	}
}

func TestFromEnv_WhenNoVariablesSet_ThenReturnsDefaults(t *testing.T) {
	// Arrange
	stashEnv(t)

	// Act
	config := FromEnv()

	// Assert
	if config.Environment != "production" {
		t.Errorf("expected Environment to be 'production', got '%s'", config.Environment)
	}
	if config.LogLevel != "info" {
		t.Errorf("expected LogLevel to be 'info', got '%s'", config.LogLevel)
	}
	if config.APIPort != "8080" {
		t.Errorf("expected APIPort to be '8080', got '%s'", config.APIPort)
	}
	if len(config.CORSOrigins) != 1 || config.CORSOrigins[0] != "*" {
		t.Errorf("expected CORS origins to be ['*'], got %v", config.CORSOrigins)
	}
	if config.DatabaseURL != "" {
		t.Errorf("expected DatabaseURL to be empty, got '%s'", config.DatabaseURL)
	}
	if config.RedisAddr != "" {
		t.Errorf("expected RedisAddr to be empty, got '%s'", config.RedisAddr)
	}
	if config.RateLimitMax != 100 {
		t.Errorf("expected RateLimitMax to be 100, got %d", config.RateLimitMax)
	}
	if config.RateLimitWindow != 60*time.Second {
		t.Errorf("expected RateLimitWindow to be 60s, got %v", config.RateLimitWindow)
	}
	if len(config.KafkaBrokers) != 0 {
		t.Errorf("expected no KafkaBrokers by default, got %v", config.KafkaBrokers)
	}
	if config.KafkaTopic != "crm.trigger-events" {
		t.Errorf("expected KafkaTopic to be 'crm.trigger-events', got '%s'", config.KafkaTopic)
	}
	if config.SweepSchedule != "@every 1h" {
		t.Errorf("expected SweepSchedule to be '@every 1h', got '%s'", config.SweepSchedule)
	}
	if config.TaskSchedule != "@every 5m" {
		t.Errorf("expected TaskSchedule to be '@every 5m', got '%s'", config.TaskSchedule)
	}
}

func TestSplitList_WhenEntriesHaveWhitespace_ThenTrimsCorrectly(t *testing.T) {
	// Act
	parts := splitList(" http://localhost:3000 , https://example.com ,  ")

	// Assert
	if len(parts) != 2 {
		t.Fatalf("expected 2 entries after trimming, got %d", len(parts))
	}
	if parts[0] != "http://localhost:3000" {
		t.Errorf("expected first entry to be 'http://localhost:3000', got '%s'", parts[0])
	}
	if parts[1] != "https://example.com" {
		t.Errorf("expected second entry to be 'https://example.com', got '%s'", parts[1])
	}
}

func TestSplitList_WhenEmpty_ThenReturnsNil(t *testing.T) {
	// Act
	parts := splitList("")

	// Assert
	if parts != nil {
		t.Errorf("expected nil, got %v", parts)
	}
}

func TestSplitList_WhenOnlyWhitespace_ThenReturnsEmpty(t *testing.T) {
	// Act
	parts := splitList("   ,  ,  ")

	// Assert
	if len(parts) != 0 {
		t.Errorf("expected empty slice, got %v", parts)
	}
}

func TestGetEnv_WhenVariableSet_ThenReturnsValue(t *testing.T) {
	// Arrange
	originalValue := os.Getenv("TEST_VAR")
	defer os.Setenv("TEST_VAR", originalValue)

	os.Setenv("TEST_VAR", "custom_value")

	// Act
	result := getEnv("TEST_VAR", "default_value")

	// Assert
	if result != "custom_value" {
		t.Errorf("expected 'custom_value', got '%s'", result)
	}
}

func TestGetEnv_WhenVariableNotSet_ThenReturnsDefault(t *testing.T) {
	// Arrange
	os.Unsetenv("NONEXISTENT_VAR")

	// Act
	result := getEnv("NONEXISTENT_VAR", "default_value")

	// Assert
	if result != "default_value" {
		t.Errorf("expected 'default_value', got '%s'", result)
	}
}

func TestGetEnv_WhenVariableEmpty_ThenReturnsDefault(t *testing.T) {
	// Arrange
	originalValue := os.Getenv("EMPTY_VAR")
	defer os.Setenv("EMPTY_VAR", originalValue)

	os.Setenv("EMPTY_VAR", "")

	// Act
	result := getEnv("EMPTY_VAR", "default_value")

	// Assert
	if result != "default_value" {
		t.Errorf("expected 'default_value', got '%s'", result)
	}
}

func TestGetEnvInt64_WhenNotNumeric_ThenReturnsDefault(t *testing.T) {
	// Arrange
	originalValue := os.Getenv("NUM_VAR")
	defer os.Setenv("NUM_VAR", originalValue)

	os.Setenv("NUM_VAR", "not-a-number")

	// Act
	result := getEnvInt64("NUM_VAR", 42)

	// Assert
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
}

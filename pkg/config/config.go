package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// App holds runtime configuration derived from the environment. A .env file in
// the working directory is loaded first when present; real environment
// variables win over file values.
type App struct {
	Environment string
	LogLevel    string
	APIPort     string
	CORSOrigins []string

	DatabaseURL string

	RedisAddr       string
	RateLimitMax    int64
	RateLimitWindow time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SweepSchedule string
	TaskSchedule  string
}

// FromEnv loads the application configuration.
func FromEnv() App {
	_ = godotenv.Load()

	return App{
		Environment:     getEnv("ENVIRONMENT", "production"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		APIPort:         getEnv("API_PORT", "8080"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RateLimitMax:    getEnvInt64("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(getEnvInt64("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "crm.trigger-events"),
		SweepSchedule:   getEnv("SWEEP_SCHEDULE", "@every 1h"),
		TaskSchedule:    getEnv("TASK_SCHEDULE", "@every 5m"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

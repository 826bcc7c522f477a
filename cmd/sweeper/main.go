package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/relaycrm/relaycrm/internal/automation"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/storage"
	"github.com/relaycrm/relaycrm/internal/sweeper"
	"github.com/relaycrm/relaycrm/internal/webhooks"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"github.com/relaycrm/relaycrm/pkg/config"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("mysql", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database connection", zap.Error(err))
	}
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(60 * time.Minute)
	if err := db.Ping(); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	store := storage.NewMySQLClient(db)
	clk := clock.RealClock{}

	sender := webhooks.NewSender(store, clk, logger)
	email := automation.NewLoggingEmailSender(logger)
	matcher := automation.NewMatcher(store)
	executor := automation.NewExecutor(store, store, store, email, sender, clk, logger)
	dispatcher := automation.NewDispatcher(store, store, matcher, executor, nil, clk, logger)
	runner := automation.NewTaskRunner(store, email, logger)

	engine := sweeper.NewEngine(store, store, store, runner, dispatcher, clk, logger)
	if err := engine.Start(cfg.SweepSchedule, cfg.TaskSchedule); err != nil {
		logger.Fatal("failed to start sweeper", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down sweeper...")
	engine.Stop()
}

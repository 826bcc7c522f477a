package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/relaycrm/relaycrm/internal/api/handlers"
	"github.com/relaycrm/relaycrm/internal/api/middleware"
	"github.com/relaycrm/relaycrm/internal/automation"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/storage"
	"github.com/relaycrm/relaycrm/internal/webhooks"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"github.com/relaycrm/relaycrm/pkg/config"
	"github.com/relaycrm/relaycrm/platform/events"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Server orchestrates HTTP routing and dependencies for the API service.
type Server struct {
	config config.App
	logger logging.Logger
	router *gin.Engine
	db     *sql.DB
	redis  *redis.Client
	bus    *events.Publisher

	ruleService    *automation.Service
	webhookService *webhooks.Service
	dispatcher     *automation.Dispatcher
	gateway        *webhooks.Gateway
}

// NewServer wires the API dependencies together.
func NewServer() *Server {
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	db := connectDatabase(cfg, logger)
	store := storage.NewMySQLClient(db)
	clk := clock.RealClock{}

	server := &Server{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var limiter webhooks.Limiter = webhooks.UnlimitedLimiter{}
	if cfg.RedisAddr != "" {
		server.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = webhooks.NewRedisLimiter(server.redis, cfg.RateLimitMax, cfg.RateLimitWindow, logger)
	} else {
		logger.Warn("REDIS_ADDR not set, inbound rate limiting disabled")
	}

	var publisher automation.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		server.bus = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = server.bus
	}

	sender := webhooks.NewSender(store, clk, logger)
	matcher := automation.NewMatcher(store)
	executor := automation.NewExecutor(store, store, store, automation.NewLoggingEmailSender(logger), sender, clk, logger)

	server.dispatcher = automation.NewDispatcher(store, store, matcher, executor, publisher, clk, logger)
	server.gateway = webhooks.NewGateway(store, store, server.dispatcher, limiter, clk, logger)
	server.ruleService = automation.NewService(store, store)
	server.webhookService = webhooks.NewConfigService(store)

	server.setupRouter()
	return server
}

// setupRouter configures the Gin router with middleware and routes.
func (s *Server) setupRouter() {
	router := gin.New()

	zapLogger := s.getZapLogger()

	// Order matters: recovery wraps everything, request id precedes logging.
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))
	router.Use(middleware.RequestID())
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Inbound webhook receiver: third-party callers authenticate through the
	// gateway itself, not through the tenant middleware.
	inboundHandler := handlers.NewInboundHandler(s.logger, s.gateway)
	router.POST("/api/webhooks/:provider", inboundHandler.Receive)
	router.GET("/api/webhooks/:provider", inboundHandler.Health)

	// Internal fire-and-forget endpoint consumed by CRM mutation hooks.
	automationHandler := handlers.NewAutomationHandler(s.logger, s.dispatcher)
	router.POST("/api/automation/execute", automationHandler.Execute)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Tenant())
	{
		ruleHandler := handlers.NewRuleHandler(s.logger, s.ruleService)
		rules := v1.Group("/rules")
		{
			rules.POST("", ruleHandler.CreateRule)
			rules.GET("", ruleHandler.ListRules)
			rules.GET("/:id", ruleHandler.GetRule)
			rules.PUT("/:id", ruleHandler.UpdateRule)
			rules.DELETE("/:id", ruleHandler.DeleteRule)
		}

		logHandler := handlers.NewLogHandler(s.logger, s.ruleService)
		logs := v1.Group("/automation/logs")
		{
			logs.GET("", logHandler.ListLogs)
			logs.GET("/:id", logHandler.GetLog)
		}

		webhookHandler := handlers.NewWebhookHandler(s.logger, s.webhookService)
		hooks := v1.Group("/webhooks")
		{
			hooks.POST("", webhookHandler.CreateWebhook)
			hooks.GET("", webhookHandler.ListWebhooks)
			hooks.GET("/:id", webhookHandler.GetWebhook)
			hooks.PUT("/:id", webhookHandler.UpdateWebhook)
			hooks.DELETE("/:id", webhookHandler.DeleteWebhook)
			hooks.GET("/:id/deliveries", webhookHandler.ListDeliveries)
		}
	}

	s.router = router
}

// getZapLogger builds the *zap.Logger gin-contrib/zap middleware requires.
func (s *Server) getZapLogger() *zap.Logger {
	var zapLogger *zap.Logger
	if s.config.Environment == "production" {
		zapLogger, _ = zap.NewProduction()
	} else {
		zapLogger, _ = zap.NewDevelopment()
	}
	return zapLogger
}

// Serve starts the HTTP server with graceful shutdown support.
func (s *Server) Serve() error {
	addr := ":" + s.config.APIPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.logger.Info("starting API server",
			zap.String("address", addr),
			zap.String("environment", s.config.Environment),
			zap.String("log_level", s.config.LogLevel),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-quit
	s.logger.Info("shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Error("failed to close event publisher", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("failed to close redis connection", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("failed to close database connection", zap.Error(err))
		}
	}

	if err := s.logger.Sync(); err != nil {
		// Ignore sync errors on stdout/stderr
		if err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: invalid argument" {
			return err
		}
	}

	s.logger.Info("server stopped")
	return nil
}

func connectDatabase(cfg config.App, logger logging.Logger) *sql.DB {
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("mysql", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database connection", zap.Error(err))
	}

	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(60 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	return db
}

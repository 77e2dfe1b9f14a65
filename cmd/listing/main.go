package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/tair/parts-exchange/docs"
	"github.com/tair/parts-exchange/internal/config"
	"github.com/tair/parts-exchange/internal/listing"
	httpDelivery "github.com/tair/parts-exchange/internal/listing/delivery/http"
	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
	"github.com/tair/parts-exchange/internal/notification"
	"github.com/tair/parts-exchange/kafka"
	"github.com/tair/parts-exchange/pkg/circuitbreaker"
	"github.com/tair/parts-exchange/pkg/database"
	"github.com/tair/parts-exchange/pkg/logger"
	"github.com/tair/parts-exchange/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger.Init(cfg.ServiceName, cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	logger.Logger.Info().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Msg("Starting listing service")

	// Initialize tracer
	shutdownTracer, err := tracing.Setup(tracing.Service{
		Name:        cfg.ServiceName,
		Version:     cfg.Version,
		Environment: cfg.Environment,
	}, cfg.Tracing)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	sqlDB, err := database.ConnectWithRetry(ctx, cfg.Database, 5, 2*time.Second)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer sqlDB.Close()

	db, err := database.NewGormConnection(sqlDB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize gorm")
	}

	// Run migrations
	if err := db.AutoMigrate(&domain.Listing{}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Logger.Info().Msg("Database initialized successfully")

	// Favorites live in Redis; an unreachable server degrades favorites only
	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer cache.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := cache.Ping(pingCtx).Err(); err != nil {
		logger.Logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis not reachable, favorites will be unavailable")
	}
	cancel()

	delivery, closeDelivery := newValidationDelivery(cfg)
	defer closeDelivery()

	// Initialize handler with Wire DI
	handler, err := listing.InitializeHTTPHandler(db, cache, delivery, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
	}

	middlewareConfig := httpDelivery.DefaultMiddlewareConfig(cfg.HTTP.RequestTimeout)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	handler.RegisterHealthCheck(router, sqlDB, cache)
	router.Handle("/metrics", promhttp.Handler())
	httpDelivery.RegisterSwaggerDocs(router)
	httpDelivery.RegisterMiddlewares(router, middlewareConfig)

	server := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           httpDelivery.SetupCORS(middlewareConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Logger.Info().
			Str("port", cfg.HTTP.Port).
			Str("metrics_endpoint", "/metrics").
			Msg("HTTP server started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	logger.Logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
}

// newValidationDelivery connects the validation e-mail queue. Listings are
// still accepted when the broker is down; the publisher is built on the
// first submission after it comes up.
func newValidationDelivery(cfg *config.Config) (command.ValidationDelivery, func()) {
	breaker := circuitbreaker.New("validation-email", cfg.Validation.BreakerMaxFailures, cfg.Validation.BreakerOpenTimeout)
	enqueuer := notification.NewLazyKafkaEnqueuer(func() (notification.ValidationPublisher, error) {
		publisher, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Validation.EnqueueTimeout)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	}, breaker)

	if _, err := enqueuer.Connect(); err != nil {
		logger.Logger.Warn().
			Err(err).
			Strs("brokers", cfg.Kafka.Brokers).
			Msg("Kafka not available yet, will reconnect on demand")
	}

	return enqueuer, func() {
		if err := enqueuer.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close Kafka publisher")
		}
	}
}

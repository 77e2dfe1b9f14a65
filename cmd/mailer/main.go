package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tair/parts-exchange/internal/config"
	"github.com/tair/parts-exchange/internal/notification"
	"github.com/tair/parts-exchange/kafka"
	"github.com/tair/parts-exchange/pkg/logger"
	"github.com/tair/parts-exchange/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	serviceName := cfg.ServiceName + "-mailer"
	logger.Init(serviceName, cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("smtp_host", cfg.SMTP.Host).
		Int("smtp_port", cfg.SMTP.Port).
		Msg("Starting validation mailer")

	shutdownTracer, err := tracing.Setup(tracing.Service{
		Name:        serviceName,
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

	sender, err := notification.NewSMTPSender(notification.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		Encryption: cfg.SMTP.Encryption,
	})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Invalid SMTP configuration")
	}

	mailer := notification.NewValidationMailer(sender, notification.MailerConfig{
		BaseURL:      cfg.Validation.BaseURL,
		MaxAttempts:  cfg.SMTP.MaxAttempts,
		RetryBackoff: cfg.SMTP.RetryBackoff,
		SendTimeout:  cfg.SMTP.SendTimeout,
	})

	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{kafka.TopicValidationEmail})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	consumer.RegisterHandler(kafka.EventTypeValidationRequested, mailer.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prometheus metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Logger.Info().Str("port", cfg.HTTP.Port).Msg("Metrics server started")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	if err := consumer.Run(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("Kafka consumer stopped")
	}
	logger.Logger.Info().Msg("Shutting down mailer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("Metrics server forced to shutdown")
	}
}

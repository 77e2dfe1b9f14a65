package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/tair/parts-exchange/internal/config"
	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/seed"
	"github.com/tair/parts-exchange/pkg/database"
	"github.com/tair/parts-exchange/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.ServiceName+"-seed", cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqlDB, err := database.ConnectWithRetry(ctx, cfg.Database, cfg.Seed.RetryAttempts, cfg.Seed.RetryDelay)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Database never became available")
	}
	defer sqlDB.Close()

	db, err := database.NewGormConnection(sqlDB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize gorm")
	}
	if err := db.AutoMigrate(&domain.Listing{}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create listings table")
	}

	migrations, err := seed.ApplyDir(ctx, sqlDB, cfg.Seed.MigrationsDir)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	logger.Logger.Info().
		Int("files", migrations.Files).
		Int("applied", migrations.Applied).
		Int("failed", migrations.Failed).
		Msg("Migrations finished")

	if !cfg.Seed.ImportDump {
		return
	}

	dump, err := seed.ImportDump(ctx, sqlDB, cfg.Seed.MigrationsDir, cfg.Seed.DumpFile)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to import data dump")
	}
	logger.Logger.Info().
		Int("applied", dump.Applied).
		Int("failed", dump.Failed).
		Msg("Data dump imported")
}

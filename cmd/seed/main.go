package main

import (
	"context"
	"log"

	"hisabkitab/internal/repository"
	"hisabkitab/pkg/config"
	"hisabkitab/pkg/logger"
	"hisabkitab/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db, appLogger); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	appLogger.Info("Seeding categories")

	categoryRepo := repository.NewCategoryRepository(db, repository.NewCategoryCache(), appLogger)
	n, err := categoryRepo.SeedDefaults(ctx)
	if err != nil {
		appLogger.Fatal("Failed to seed categories", zap.Error(err))
	}

	appLogger.Info("Database seeding completed", zap.Int64("added", n))
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hisabkitab/internal/api"
	"hisabkitab/internal/api/handlers"
	"hisabkitab/internal/normalize"
	"hisabkitab/internal/rasterize"
	"hisabkitab/internal/repository"
	"hisabkitab/internal/service"
	"hisabkitab/internal/vision"
	"hisabkitab/internal/worker"
	"hisabkitab/pkg/auth"
	"hisabkitab/pkg/config"
	"hisabkitab/pkg/logger"
	"hisabkitab/pkg/postgres"

	"go.uber.org/zap"
)

// @title Hisab Kitab API
// @version 1.0
// @description Bank statement import and personal finance tracking

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting hisabkitab", zap.String("vision_backend", cfg.Vision.Backend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db, appLogger); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db, appLogger)
	categoryRepo := repository.NewCategoryRepository(db, repository.NewCategoryCache(), logger.Component("categories"))
	importRepo := repository.NewImportRepository(db, appLogger)
	txRepo := repository.NewTransactionRepository(db, categoryRepo, appLogger)

	if n, err := categoryRepo.SeedDefaults(ctx); err != nil {
		appLogger.Fatal("Failed to seed categories", zap.Error(err))
	} else if n > 0 {
		appLogger.Info("Seeded categories", zap.Int64("count", n))
	}

	adapter, err := vision.New(ctx, cfg.Vision, logger.Component("vision"))
	if err != nil {
		appLogger.Fatal("Failed to initialize vision adapter", zap.Error(err))
	}

	importWorker := worker.New(
		importRepo,
		txRepo,
		rasterize.New(cfg.Image, cfg.Storage.ImagesDir, logger.Component("rasterize")),
		adapter,
		normalize.New(),
		cfg.Worker.PollInterval,
		logger.Component("worker"),
	)
	importWorker.Start(ctx)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	authService := service.NewAuthService(userRepo, jwtManager, appLogger)
	importService := service.NewImportService(importRepo, cfg.Storage.UploadDir, appLogger)
	txService := service.NewTransactionService(txRepo, categoryRepo, appLogger)
	exportService := service.NewExportService(txRepo, appLogger)
	analyticsService := service.NewAnalyticsService(txRepo, appLogger)

	app := api.SetupRouter(
		handlers.NewAuthHandler(authService, appLogger),
		handlers.NewImportHandler(importService, appLogger),
		handlers.NewTransactionHandler(txService, exportService, appLogger),
		handlers.NewAnalyticsHandler(analyticsService, appLogger),
		jwtManager,
		cfg.Server,
		appLogger,
	)

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	// The worker finishes the job it holds before exiting.
	cancel()
	importWorker.Wait()
	appLogger.Info("Stopped")
}

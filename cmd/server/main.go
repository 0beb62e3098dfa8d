package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/api"
	"github.com/bobby-s-dev/airquality-aggregator/internal/config"
	"github.com/bobby-s-dev/airquality-aggregator/internal/dataset"
	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/bobby-s-dev/airquality-aggregator/internal/scheduler"
	"github.com/bobby-s-dev/airquality-aggregator/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Initialize logger
	zapConfig := zap.NewProductionConfig()
	logger, _ := zapConfig.Build()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Air Quality Aggregator Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if level, err := zapcore.ParseLevel(cfg.Server.LogLevel); err == nil {
		zapConfig.Level.SetLevel(level)
	} else {
		logger.Warn("Unknown log level, keeping info", zap.String("level", cfg.Server.LogLevel))
	}

	loader, err := dataset.NewLoaderFromConfig(cfg, nil, logger)
	if err != nil {
		logger.Fatal("Failed to configure dataset loader", zap.Error(err))
	}

	// Initialize aggregator and publish the first dataset
	aggregator := services.NewAggregator(cfg, loader, logger)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Minute)
	err = aggregator.Reload(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Fatal("Failed to load initial dataset",
			zap.Strings("sources", loader.Specs()),
			zap.Error(err))
	}

	// Initialize scheduler
	reloadScheduler := scheduler.NewScheduler(
		aggregator,
		aggregator.Cache(),
		cfg.Scheduler.ReloadSchedule,
		cfg.Scheduler.CacheCleanupSchedule,
		logger,
	)

	var watcher *scheduler.Watcher
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.Scheduler.WatchSources {
		dirs := scheduler.WatchDirs(loader.Specs())
		watcher, err = scheduler.NewWatcher(dirs, aggregator, cfg.Scheduler.WatchDebounce,
			[]string{cfg.Data.SnapshotPath}, logger)
		if err != nil {
			logger.Fatal("Failed to watch data sources", zap.Error(err))
		}
		go func() {
			if err := watcher.Run(watchCtx); err != nil {
				logger.Error("Source watcher stopped", zap.Error(err))
			}
		}()
		logger.Info("Watching data sources", zap.Strings("dirs", dirs))
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(aggregator, logger)
	api.SetupRoutes(app, handler, logger)

	// Start scheduler
	if err := reloadScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reloadScheduler.Stop()
	if watcher != nil {
		stopWatch()
		if err := watcher.Close(); err != nil {
			logger.Warn("Failed to close source watcher", zap.Error(err))
		}
	}

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, models.ErrEmptyRange):
		code = fiber.StatusNotFound
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}

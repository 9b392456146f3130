package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/BladeLoaderCore/internal/config"
	"github.com/KevinKickass/BladeLoaderCore/internal/store"
	"github.com/KevinKickass/BladeLoaderCore/internal/system"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully")

	positions, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open position store", zap.Error(err))
	}

	lifecycle := system.NewLifecycleManager(positions, cfg, logger)

	if err := lifecycle.Start(); err != nil {
		logger.Fatal("Failed to start system", zap.Error(err))
	}

	logger.Info("BladeLoaderCore started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := lifecycle.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("BladeLoaderCore stopped successfully")
}

func newStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		logger.Info("Using postgres position store",
			zap.String("host", cfg.Store.Database.Host))
		return store.NewPostgresStore(context.Background(), cfg.Store.Database, "")
	default:
		logger.Info("Using file position store",
			zap.String("path", cfg.Store.FilePath))
		return store.NewFileStore(cfg.Store.FilePath)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"bahri-storefront/internal/config"
	"bahri-storefront/internal/db"
	"bahri-storefront/internal/logging"
	"bahri-storefront/internal/migrate"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, "migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			logger.Fatal("connect db", zap.Error(err))
		}
		defer pool.Close()
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
	case config.StorageSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal("open sqlite", zap.String("path", cfg.SQLitePath), zap.Error(err))
		}
		defer sqlDB.Close()
		if err := migrate.ApplySQLite(ctx, sqlDB); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
	default:
		logger.Info("memory storage has no schema")
		return
	}

	logger.Info("migrations applied", zap.String("driver", cfg.StorageDriver))
}

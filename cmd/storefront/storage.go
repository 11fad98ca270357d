package main

import (
	"context"
	"fmt"

	"bahri-storefront/internal/config"
	"bahri-storefront/internal/db"
	"bahri-storefront/internal/httpserver"
	"bahri-storefront/internal/migrate"
	"bahri-storefront/internal/repository/kv"
)

type storage struct {
	repo  kv.Repository
	ping  httpserver.Pinger
	close func()
}

func (s storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// openStorage connects the configured device storage and brings its schema
// up to date.
func openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return storage{}, fmt.Errorf("connect to db: %w", err)
		}
		if err := migrate.Apply(ctx, pool); err != nil {
			pool.Close()
			return storage{}, fmt.Errorf("apply migrations: %w", err)
		}
		return storage{repo: kv.NewPostgres(pool), ping: pool, close: pool.Close}, nil

	case config.StorageSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return storage{}, fmt.Errorf("open sqlite: %w", err)
		}
		if err := migrate.ApplySQLite(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return storage{}, fmt.Errorf("apply migrations: %w", err)
		}
		return storage{
			repo:  kv.NewSQLite(sqlDB),
			ping:  httpserver.PingFunc(sqlDB.PingContext),
			close: func() { sqlDB.Close() },
		}, nil
	}

	return storage{
		repo: kv.NewMemory(),
		ping: httpserver.PingFunc(func(context.Context) error { return nil }),
	}, nil
}

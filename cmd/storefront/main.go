package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/config"
	"bahri-storefront/internal/httpserver"
	"bahri-storefront/internal/logging"
	"bahri-storefront/internal/service/cart"
	"bahri-storefront/internal/service/checkout"
	"bahri-storefront/internal/storefront"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, "storefront")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer store.Close()

	policy, err := cart.PolicyByName(cfg.CartMergePolicy)
	if err != nil {
		logger.Fatal("cart policy", zap.Error(err))
	}

	registry := storefront.NewRegistry(storefront.Options{
		Backend:    backend.New(cfg.BackendBaseURL, backend.WithTimeout(cfg.BackendTimeout), backend.WithLogger(logger.Named("backend"))),
		Repo:       store.repo,
		Calculator: checkout.NewCalculator(cfg.ShippingFee),
		Policy:     policy,
		Logger:     logger,
	}, storefront.WithMaxDevices(cfg.MaxDevices), storefront.WithIdleTimeout(cfg.DeviceIdleTTL))
	defer registry.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.DeviceIdleTTL > 0 {
		go registry.Sweep(sweepCtx, cfg.DeviceIdleTTL/2)
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Devices:     registry,
		Catalog:     registry.Catalog(),
		Storage:     store.ping,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("backend", cfg.BackendBaseURL),
			zap.String("storage", cfg.StorageDriver),
			zap.String("cart_policy", policy.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

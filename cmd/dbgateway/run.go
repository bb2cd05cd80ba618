package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nyuchitech/mukoko-db-gateway/internal/app"
	"github.com/nyuchitech/mukoko-db-gateway/internal/auth"
	"github.com/nyuchitech/mukoko-db-gateway/internal/cache"
	"github.com/nyuchitech/mukoko-db-gateway/internal/config"
	"github.com/nyuchitech/mukoko-db-gateway/internal/policy"
	"github.com/nyuchitech/mukoko-db-gateway/internal/server"
	"github.com/nyuchitech/mukoko-db-gateway/internal/storage/mongodb"
	"github.com/nyuchitech/mukoko-db-gateway/internal/telemetry"
	"github.com/nyuchitech/mukoko-db-gateway/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting dbgateway", "version", version, "addr", cfg.Server.Addr)

	if cfg.Auth.SharedSecret == "" {
		// Fail closed: the server still starts so the misconfiguration is
		// observable, but every request will be rejected with a 500.
		slog.Error("no shared secret configured; all requests will be rejected")
	}

	ctx := context.Background()

	// Connect the single store handle up front and pass it into the handler
	// dependencies; no lazy globals.
	store, err := mongodb.New(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	// Telemetry
	var (
		metrics  *telemetry.Metrics
		registry *prometheus.Registry
	)
	if cfg.Telemetry.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(registry)
		metrics.StoreUp.Set(1)
	}
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background()) //nolint:errcheck
	}

	// Read-result cache (off by default)
	var rc *cache.ResultCache
	if cfg.Cache.Enabled {
		rc, err = cache.New(cfg.Cache.MaxSize, cfg.Cache.DefaultTTL)
		if err != nil {
			return err
		}
	}

	// Wire services
	pol := policy.New(cfg.Policy, cfg.Limits)
	querySvc := app.NewQueryService(store, pol, rc, metrics)

	handler := server.New(server.Deps{
		Auth:       auth.New(cfg.Auth.SharedSecret),
		Query:      querySvc,
		ReadyCheck: store.Ping,
		Metrics:    metrics,
		Registry:   registry,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	runner := worker.NewRunner(worker.NewStorePinger(store, metrics, cfg.Store.PingInterval))
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- runner.Run(workerCtx)
	}()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("dbgateway ready", "addr", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	stopWorkers()
	<-workerDone

	slog.Info("dbgateway stopped")
	return nil
}

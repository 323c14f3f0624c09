package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"peppermint/internal/amqp"
	"peppermint/internal/backend"
	"peppermint/internal/cli"
	apphttp "peppermint/internal/http"
	applog "peppermint/internal/log"
	"peppermint/internal/services"
	"peppermint/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() { _ = result.Cleanup() }()
	}
	logger.Info("Initialized backend", applog.FieldBackend, cfg.DataBackend)

	// Snapshot store keeps the last published view across restarts (optional).
	var snapshots services.ViewSnapshots
	if cfg.SnapshotDBPath != "" {
		store := cli.InitSnapshotStore(logger, cfg.SnapshotDBPath)
		defer store.Close()
		snapshots = store
		logger.Info("Snapshot store enabled", "path", cfg.SnapshotDBPath)
	}

	// Mutation-event stream (optional).
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
		logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange)
	}

	agg := services.NewAggregator(result.Backend, snapshots, events)

	// Install the last persisted view, flagged stale, so a restart does not
	// greet the user with an empty page.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.RefreshTimeout)
	if err := agg.RestoreSnapshot(startupCtx); err != nil && !errors.Is(err, storage.ErrNoSnapshot) {
		logger.Warn("Snapshot restore failed", applog.FieldError, err)
	}
	startupCancel()

	srv := apphttp.NewServer(":"+cfg.Port, agg, result.Backend)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting peppermint server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

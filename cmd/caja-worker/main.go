package main

import (
	"context"
	"errors"
	"os"
	"time"
	_ "time/tzdata"

	"caja/internal/amqp"
	"caja/internal/cli"
	"caja/internal/log"
	"caja/internal/records"
	"caja/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting caja-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	loc := cli.LoadLocation(logger, cfg)
	res := cli.InitBackend(context.Background(), logger, cfg, loc)

	// Snapshots always land in SQLite, even when figures are read elsewhere.
	var snapshots records.SnapshotStore = res.Snapshots
	cleanup := []func() error{res.Close}
	if snapshots == nil {
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		snapshots = repo
		cleanup = append(cleanup, repo.Close)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, loc)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	cleanup = append(cleanup, amqpClient.Close)

	// The worker recomputes from the store every time; no dashboard cache.
	dashboards, _ := cli.BuildDashboards(res.Backend, loc, 0)
	snapshotWorker := worker.NewSnapshotWorker(dashboards, snapshots, loc)

	// A dead consumer stops the process so the supervisor restarts it.
	stop, stopWorker := context.WithCancelCause(context.Background())
	ctx, done := cli.GracefulShutdown(stop, logger, 30*time.Second, func(context.Context) {
		for _, fn := range cleanup {
			if err := fn(); err != nil {
				logger.Error("Cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Performing startup snapshot check...")
	if err := snapshotWorker.StartupCheck(ctx); err != nil {
		// Not fatal: the periodic refresh retries.
		logger.Error("Startup snapshot check failed", log.FieldError, err)
	}

	go func() {
		err := amqpClient.ConsumeMovementEvents(ctx, snapshotWorker.HandleMovementRecorded)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			stopWorker(err)
		}
	}()
	go snapshotWorker.Run(ctx, cfg.SnapshotInterval)

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"snapshot_interval", cfg.SnapshotInterval.String())
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

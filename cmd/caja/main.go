package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"caja/internal/cli"
	apphttp "caja/internal/http"
	"caja/internal/log"
	"caja/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg := cli.LoadAndValidateConfig(logger)
	loc := cli.LoadLocation(logger, cfg)
	res := cli.InitBackend(context.Background(), logger, cfg, loc)

	dashboards, stopCache := cli.BuildDashboards(res.Backend, loc, cfg.DashboardCacheTTL)
	cash := services.NewCashService(res.Backend, res.Publisher, dashboards)

	opts := apphttp.Options{
		Addr:           ":" + cfg.Port,
		Dashboards:     dashboards,
		Cash:           cash,
		Store:          res.Backend,
		Snapshots:      res.Snapshots,
		Logger:         logger,
		WriteRateLimit: cfg.WriteRateLimit,
		Location:       loc,
	}
	if broker, ok := res.Publisher.(apphttp.BrokerHealth); ok {
		opts.Broker = broker
	}
	srv := apphttp.NewServer(opts)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		stopCache()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting caja server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"amqp_enabled", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

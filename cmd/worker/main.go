package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/recouvra/recouvra/internal/app"
	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/platform/cache"
	"github.com/recouvra/recouvra/internal/platform/db"
	"github.com/recouvra/recouvra/internal/relance"
	"github.com/recouvra/recouvra/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditService := audit.NewService(pool, logger)

	// The worker delivers mail itself; SMS and anything else without a
	// transport is logged.
	dispatcher := communications.SMTPDispatcher{
		Addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		From:     cfg.SMTPFrom,
		Fallback: communications.LogDispatcher{Logger: logger},
	}

	clientsRepo := clients.NewRepository(pool)
	invoicesRepo := invoices.NewRepository(pool)
	commsRepo := communications.NewRepository(pool)
	relanceRepo := relance.NewRepository(pool)
	relanceService := relance.NewService(relanceRepo, clientsRepo, invoicesRepo, commsRepo, dispatcher, auditService, logger)
	scanJob := relance.NewScanJob(relanceService, logger)

	scanTask, err := jobs.NewRelanceScanTask(jobs.RelanceScanPayload{})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:  asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:     logger,
		Dispatcher: dispatcher,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRelanceScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RelanceScanSpec, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

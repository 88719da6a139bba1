package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/recouvra/recouvra/internal/app"
	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/auth"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/documents"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/observability"
	"github.com/recouvra/recouvra/internal/payments"
	"github.com/recouvra/recouvra/internal/platform/cache"
	"github.com/recouvra/recouvra/internal/platform/db"
	"github.com/recouvra/recouvra/internal/relance"
	"github.com/recouvra/recouvra/internal/reporting"
	"github.com/recouvra/recouvra/jobs"

	"github.com/jackc/pgx/v5"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	sessions := auth.NewSessionStore(redisClient, cfg.SessionTTL)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, sessions, auditService)
	authHandler := auth.NewHandler(logger, authService)

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(clientsRepo, auditService)
	clientsHandler := clients.NewHandler(logger, clientsService)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(invoicesRepo, clientsRepo, auditService)
	invoicesHandler := invoices.NewHandler(logger, invoicesService)

	runTx := func(ctx context.Context, fn func(pgx.Tx) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, invoicesRepo, clientsRepo, runTx, auditService)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	commsRepo := communications.NewRepository(pool)
	commsService := communications.NewService(commsRepo, clientsRepo, auditService)
	commsHandler := communications.NewHandler(logger, commsService)

	documentsRepo := documents.NewRepository(pool)
	documentsService := documents.NewService(documentsRepo, clientsRepo, auditService)
	documentsHandler := documents.NewHandler(logger, documentsService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	// The HTTP process hands rendered messages to the queue; the worker owns
	// actual delivery.
	dispatcher := jobs.QueueDispatcher{Client: jobsClient}

	relanceRepo := relance.NewRepository(pool)
	relanceService := relance.NewService(relanceRepo, clientsRepo, invoicesRepo, commsRepo, dispatcher, auditService, logger)
	relanceHandler := relance.NewHandler(logger, relanceService, func(ctx context.Context, asOf time.Time) error {
		_, err := jobsClient.EnqueueRelanceScan(ctx, jobs.RelanceScanPayload{AsOf: asOf})
		return err
	})

	reportingCache := reporting.NewCache(redisClient, 10*time.Minute)
	if err := reportingCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("reporting cache subscribe", slog.Any("error", err))
	}
	reportingService := reporting.NewService(clientsRepo, invoicesRepo, reportingCache)
	reportingHandler := reporting.NewHandler(logger, reportingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		PrincipalMiddleware:   auth.Middleware(authService),
		AuthHandler:           authHandler,
		ClientsHandler:        clientsHandler,
		InvoicesHandler:       invoicesHandler,
		PaymentsHandler:       paymentsHandler,
		CommunicationsHandler: commsHandler,
		DocumentsHandler:      documentsHandler,
		RelanceHandler:        relanceHandler,
		ReportingHandler:      reportingHandler,
		JobHandler:            jobHandler,
		Metrics:               metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tempus-erp/tempus-erp/internal/app"
	"github.com/tempus-erp/tempus-erp/internal/billing"
	"github.com/tempus-erp/tempus-erp/internal/inventory"
	jobmetrics "github.com/tempus-erp/tempus-erp/internal/jobs"
	"github.com/tempus-erp/tempus-erp/internal/ledger"
	"github.com/tempus-erp/tempus-erp/internal/platform/cache"
	"github.com/tempus-erp/tempus-erp/internal/platform/db"
	"github.com/tempus-erp/tempus-erp/internal/shared"
	"github.com/tempus-erp/tempus-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, auditLogger, logger, billing.Policy{
		Payment:        billing.PaymentPolicy{AllowOverpayment: cfg.AllowOverpay},
		DefaultTaxRate: cfg.DefaultTaxRate,
		TaxKind:        cfg.TaxKind,
	})

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, logger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, redisClient, cfg.LedgerCacheTTL, logger)

	overdueJob := jobs.NewOverdueScanJob(billingService, logger, metrics)
	warmupJob := jobs.NewLedgerWarmupJob(ledgerService, logger, metrics)
	stockJob := jobs.NewStockScanJob(inventoryService, logger, metrics)

	overdueTask, err := jobs.NewOverdueScanTask(jobs.OverdueScanPayload{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewLedgerWarmupTask(jobs.LedgerWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	stockTask, err := jobs.NewStockScanTask()
	if err != nil {
		logger.Error("build stock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskLedgerWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskStockScan, Handler: stockJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 0 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 0 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: stockTask},
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

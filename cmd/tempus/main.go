package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/tempus-erp/tempus-erp/internal/app"
	"github.com/tempus-erp/tempus-erp/internal/auth"
	"github.com/tempus-erp/tempus-erp/internal/billing"
	"github.com/tempus-erp/tempus-erp/internal/customers"
	"github.com/tempus-erp/tempus-erp/internal/expenses"
	"github.com/tempus-erp/tempus-erp/internal/inventory"
	"github.com/tempus-erp/tempus-erp/internal/ledger"
	"github.com/tempus-erp/tempus-erp/internal/observability"
	"github.com/tempus-erp/tempus-erp/internal/platform/cache"
	"github.com/tempus-erp/tempus-erp/internal/platform/db"
	"github.com/tempus-erp/tempus-erp/internal/shared"
	"github.com/tempus-erp/tempus-erp/internal/users"
	"github.com/tempus-erp/tempus-erp/jobs"
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

	validate := validator.New()
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, auditLogger, validate)

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(usersService, tokenStore)
	authHandler := auth.NewHandler(logger, authService, validate)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, auditLogger, logger, billing.Policy{
		Payment:        billing.PaymentPolicy{AllowOverpayment: cfg.AllowOverpay},
		DefaultTaxRate: cfg.DefaultTaxRate,
		TaxKind:        cfg.TaxKind,
	})
	idempotencyStore := shared.NewIdempotencyStore(pool)
	billingHandler := billing.NewHandler(logger, billingService, validate, idempotencyStore)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService, validate)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, validate)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, auditLogger, logger)
	expensesHandler := expenses.NewHandler(logger, expensesService, validate)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, redisClient, cfg.LedgerCacheTTL, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		AuthService:      authService,
		BillingHandler:   billingHandler,
		CustomersHandler: customersHandler,
		InventoryHandler: inventoryHandler,
		ExpensesHandler:  expensesHandler,
		LedgerHandler:    ledgerHandler,
		UsersHandler:     usersHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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

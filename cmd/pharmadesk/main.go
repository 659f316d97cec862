package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmadesk/pharmadesk/internal/app"
	"github.com/pharmadesk/pharmadesk/internal/auth"
	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/checkout"
	"github.com/pharmadesk/pharmadesk/internal/customers"
	"github.com/pharmadesk/pharmadesk/internal/debts"
	"github.com/pharmadesk/pharmadesk/internal/observability"
	"github.com/pharmadesk/pharmadesk/internal/platform/cache"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/rbac"
	"github.com/pharmadesk/pharmadesk/internal/reports"
	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/settings"
	"github.com/pharmadesk/pharmadesk/internal/shared"
	"github.com/pharmadesk/pharmadesk/internal/suppliers"
	"github.com/pharmadesk/pharmadesk/internal/users"
	"github.com/pharmadesk/pharmadesk/jobs"
	"github.com/pharmadesk/pharmadesk/report"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.PGMigrate {
		applied, err := db.Migrate(ctx, dbpool)
		if err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", slog.Any("names", applied))
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rbacMode, _ := cfg.RBACMode()
	sessionManager := shared.NewSessionManager(redisClient, "pharmadesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	notifier := shared.SessionNotifier{Log: shared.LogNotifier{Logger: logger}}
	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, logger)
	rbacService := rbac.NewService(usersRepo, rbac.DefaultPolicy())
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Mode: rbacMode}

	authService := auth.NewService(auth.NewRepository(dbpool))

	settingsService := settings.NewService(settings.NewRepository(dbpool), auditLogger, logger)
	backupService := settings.NewBackupService(settings.NewBackupRepository(dbpool), settingsService, logger)
	thresholds := app.SettingsThresholds{Source: settingsService}

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, thresholds, logger)
	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(customersRepo, logger)
	suppliersService := suppliers.NewService(suppliers.NewRepository(dbpool), logger)
	salesService := sales.NewService(sales.NewRepository(dbpool))
	debtsService := debts.NewService(debts.NewRepository(dbpool), debts.Options{
		Idempotency: idempotencyStore,
		Notifier:    notifier,
		Audit:       auditLogger,
		Observer:    metrics,
		Logger:      logger,
	})

	invoices, err := checkout.NewInvoiceNumberer(cfg.NodeID)
	if err != nil {
		logger.Error("invoice numberer", slog.Any("error", err))
		os.Exit(1)
	}
	checkoutService := checkout.NewService(checkout.NewRepository(dbpool), checkout.Options{
		Store:       checkout.NewRedisCartStore(redisClient, cfg.CartTTL),
		Products:    catalogService,
		Tax:         settingsService,
		Invoices:    invoices,
		Idempotency: idempotencyStore,
		Locker:      shared.NewLocker(redisClient),
		Notifier:    notifier,
		Audit:       auditLogger,
		Observer:    metrics,
		Logger:      logger,
	})

	reportsService := reports.NewService(reports.Sources{
		Products:   catalogRepo,
		Sales:      salesService,
		Debts:      debtsService,
		Customers:  customersService,
		Thresholds: thresholds,
	}, logger)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	receipts := report.NewReceipts(pdfClient, settingsService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
		Ready: func(r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := dbpool.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx).Err()
		},

		AuthHandler:        auth.NewHandler(logger, authService, sessionManager, csrfManager),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),
		CatalogHandler:     catalog.NewHandler(logger, catalogService, rbacMiddleware),
		CustomersHandler:   customers.NewHandler(logger, customersService, debtsService, salesService, rbacMiddleware),
		SuppliersHandler:   suppliers.NewHandler(logger, suppliersService, rbacMiddleware),
		CheckoutHandler:    checkout.NewHandler(logger, checkoutService, receipts, rbacMiddleware),
		SalesHandler:       sales.NewHandler(logger, salesService, rbacMiddleware),
		DebtsHandler:       debts.NewHandler(logger, debtsService, rbacMiddleware),
		ReportsHandler:     reports.NewHandler(logger, reportsService, rbacMiddleware),
		SettingsHandler:    settings.NewHandler(logger, settingsService, backupService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		ReportHandler:      report.NewHandler(pdfClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("rbac_mode", string(rbacMode)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharmadesk/pharmadesk/internal/app"
	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/debts"
	jobmetrics "github.com/pharmadesk/pharmadesk/internal/jobs"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/settings"
	"github.com/pharmadesk/pharmadesk/internal/shared"
	"github.com/pharmadesk/pharmadesk/jobs"
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

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	notifier := shared.LogNotifier{Logger: logger}
	settingsService := settings.NewService(settings.NewRepository(pool), shared.NopAudit{}, logger)
	debtsService := debts.NewService(debts.NewRepository(pool), debts.Options{Notifier: notifier, Logger: logger})

	reconcile := &jobs.ReconcileDebtsJob{Debts: debtsService, Logger: logger, Metrics: metrics}
	stockAlerts := &jobs.StockAlertJob{
		Products:   catalog.NewRepository(pool),
		Thresholds: app.SettingsThresholds{Source: settingsService},
		Notifier:   notifier,
		Logger:     logger,
		Metrics:    metrics,
	}
	reminders := &jobs.DebtReminderJob{Debts: debtsService, Notifier: notifier, Logger: logger, Metrics: metrics}
	cleanup := &jobs.IdempotencyCleanupJob{
		Store:     shared.NewIdempotencyStore(pool),
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   metrics,
	}

	var cron []jobs.CronRegistration
	for taskType, spec := range map[string]string{
		jobs.TaskReconcileDebts:     cfg.CronReconcileDebts,
		jobs.TaskStockAlerts:        cfg.CronStockAlerts,
		jobs.TaskDebtReminders:      cfg.CronDebtReminders,
		jobs.TaskIdempotencyCleanup: cfg.CronIdempotencyCleanup,
	} {
		if spec == "" || spec == "off" {
			continue
		}
		task, err := jobs.NewCronTask(taskType)
		if err != nil {
			logger.Error("build cron task", slog.String("task", taskType), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconcileDebts, Handler: reconcile.Handle},
			{Type: jobs.TaskStockAlerts, Handler: stockAlerts.Handle},
			{Type: jobs.TaskDebtReminders, Handler: reminders.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if addr := cfg.WorkerMetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency), slog.Int("cron_entries", len(cron)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

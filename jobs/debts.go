package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmadesk/pharmadesk/internal/debts"
	jobmetrics "github.com/pharmadesk/pharmadesk/internal/jobs"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// DebtReconciler rewrites the customer debt mirror.
type DebtReconciler interface {
	ReconcileMirror(ctx context.Context) (int64, error)
}

// ReconcileDebtsJob keeps customers.total_debt equal to the ledger.
type ReconcileDebtsJob struct {
	Debts   DebtReconciler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle implements asynq.HandlerFunc.
func (j *ReconcileDebtsJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskReconcileDebts)
	payload, err := decodePayload(t)
	if err != nil {
		return tracker.End(err)
	}
	logger := loggerOr(j.Logger).With(
		slog.String("job", TaskReconcileDebts),
		slog.Time("scheduled_for", payload.ScheduledFor),
	)
	changed, err := j.Debts.ReconcileMirror(ctx)
	if err != nil {
		logger.Error("reconcile debt mirror", slog.Any("error", err))
		return tracker.End(fmt.Errorf("reconcile debts: %w", err))
	}
	if changed > 0 {
		logger.Warn("customer debt mirror drifted", slog.Int64("customers", changed))
	} else {
		logger.Info("customer debt mirror consistent")
	}
	return tracker.End(nil)
}

// OverdueSource lists unpaid debts dated before today.
type OverdueSource interface {
	Overdue(ctx context.Context) ([]debts.Debt, error)
}

// DebtReminderJob emits one notice per overdue debt.
type DebtReminderJob struct {
	Debts    OverdueSource
	Notifier shared.Notifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// Handle implements asynq.HandlerFunc.
func (j *DebtReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskDebtReminders)
	if _, err := decodePayload(t); err != nil {
		return tracker.End(err)
	}
	_, err := j.Remind(ctx)
	return tracker.End(err)
}

// Remind notifies about every overdue debt and returns how many were sent.
func (j *DebtReminderJob) Remind(ctx context.Context) (int, error) {
	logger := loggerOr(j.Logger).With(slog.String("job", TaskDebtReminders))
	overdue, err := j.Debts.Overdue(ctx)
	if err != nil {
		return 0, fmt.Errorf("list overdue debts: %w", err)
	}
	notifier := j.Notifier
	if notifier == nil {
		notifier = shared.LogNotifier{Logger: logger}
	}
	now := nowOr(j.clock)
	for _, d := range overdue {
		days := int(now.Sub(d.DebtDate).Hours() / 24)
		notifier.Notify(ctx, shared.NoticeWarning, fmt.Sprintf("Invoice %s for customer %s is %d days overdue, %s remaining",
			d.InvoiceNumber, d.CustomerID, days, d.RemainingAmount))
	}
	j.Metrics.AddReminders(len(overdue))
	logger.Info("debt reminders sent", slog.Int("count", len(overdue)))
	return len(overdue), nil
}

// IdempotencyPruner removes idempotency keys older than a cutoff.
type IdempotencyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// DefaultIdempotencyRetention bounds how long checkout and payment keys are remembered.
const DefaultIdempotencyRetention = 72 * time.Hour

// IdempotencyCleanupJob prunes stale keys.
type IdempotencyCleanupJob struct {
	Store     IdempotencyPruner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle implements asynq.HandlerFunc.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	if _, err := decodePayload(t); err != nil {
		return tracker.End(err)
	}
	retention := j.Retention
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return tracker.End(fmt.Errorf("cleanup idempotency keys: %w", err))
	}
	loggerOr(j.Logger).Info("idempotency keys pruned",
		slog.String("job", TaskIdempotencyCleanup),
		slog.Int64("removed", removed),
		slog.Duration("retention", retention))
	return tracker.End(nil)
}

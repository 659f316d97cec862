package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	jobmetrics "github.com/pharmadesk/pharmadesk/internal/jobs"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// ProductLister returns the raw catalog.
type ProductLister interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

// StockReport counts the products flagged by one scan.
type StockReport struct {
	LowStock   int
	Expired    int
	NearExpiry int
}

// StockAlertJob warns staff about low stock and expiring products.
type StockAlertJob struct {
	Products   ProductLister
	Thresholds catalog.ThresholdSource
	Notifier   shared.Notifier
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// Handle implements asynq.HandlerFunc.
func (j *StockAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskStockAlerts)
	if _, err := decodePayload(t); err != nil {
		return tracker.End(err)
	}
	_, err := j.Scan(ctx)
	return tracker.End(err)
}

// Scan evaluates every product against the current thresholds.
func (j *StockAlertJob) Scan(ctx context.Context) (StockReport, error) {
	logger := loggerOr(j.Logger).With(slog.String("job", TaskStockAlerts))
	th := catalog.DefaultThresholds()
	if j.Thresholds != nil {
		current, err := j.Thresholds.CatalogThresholds(ctx)
		if err != nil {
			return StockReport{}, fmt.Errorf("load thresholds: %w", err)
		}
		th = current
	}
	products, err := j.Products.List(ctx)
	if err != nil {
		return StockReport{}, fmt.Errorf("list products: %w", err)
	}

	now := nowOr(j.clock)
	var report StockReport
	var low, expired, near []string
	for _, p := range products {
		switch {
		case p.IsExpired(now):
			report.Expired++
			expired = append(expired, p.Name)
		case p.IsNearExpiry(now, th.ExpiryDays):
			report.NearExpiry++
			near = append(near, p.Name)
		}
		if p.IsLowStock(th.LowStock) {
			report.LowStock++
			low = append(low, p.Name)
		}
	}

	j.Metrics.AddAlerts("low_stock", report.LowStock)
	j.Metrics.AddAlerts("expired", report.Expired)
	j.Metrics.AddAlerts("near_expiry", report.NearExpiry)

	notifier := j.Notifier
	if notifier == nil {
		notifier = shared.LogNotifier{Logger: logger}
	}
	if len(low) > 0 {
		notifier.Notify(ctx, shared.NoticeWarning, fmt.Sprintf("%d products below %d units: %s", len(low), th.LowStock, joinNames(low)))
	}
	if len(expired) > 0 {
		notifier.Notify(ctx, shared.NoticeError, fmt.Sprintf("%d products expired: %s", len(expired), joinNames(expired)))
	}
	if len(near) > 0 {
		notifier.Notify(ctx, shared.NoticeWarning, fmt.Sprintf("%d products expire within %d days: %s", len(near), th.ExpiryDays, joinNames(near)))
	}

	logger.Info("stock scan complete",
		slog.Int("products", len(products)),
		slog.Int("low_stock", report.LowStock),
		slog.Int("expired", report.Expired),
		slog.Int("near_expiry", report.NearExpiry))
	return report, nil
}

const maxListedNames = 10

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i == maxListedNames {
			return out + fmt.Sprintf(" and %d more", len(names)-maxListedNames)
		}
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func nowOr(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now()
	}
	return clock()
}

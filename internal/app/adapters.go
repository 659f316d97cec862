package app

import (
	"context"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/reports"
	"github.com/pharmadesk/pharmadesk/internal/settings"
)

// SystemSource reads the system section of the settings document.
type SystemSource interface {
	System(ctx context.Context) (settings.System, error)
}

// SettingsThresholds feeds the live settings thresholds to catalog flags,
// reports and the stock alert job.
type SettingsThresholds struct {
	Source SystemSource
}

// CatalogThresholds implements catalog.ThresholdSource.
func (s SettingsThresholds) CatalogThresholds(ctx context.Context) (catalog.Thresholds, error) {
	sys, err := s.Source.System(ctx)
	if err != nil {
		return catalog.Thresholds{}, err
	}
	return catalog.Thresholds{LowStock: sys.LowStockThreshold, ExpiryDays: sys.ExpiryAlertDays}, nil
}

// ReportThresholds implements reports.ThresholdSource.
func (s SettingsThresholds) ReportThresholds(ctx context.Context) (reports.Thresholds, error) {
	sys, err := s.Source.System(ctx)
	if err != nil {
		return reports.Thresholds{}, err
	}
	return reports.Thresholds{
		LowStock:    sys.LowStockThreshold,
		ExpiryDays:  sys.ExpiryAlertDays,
		LoyalPoints: sys.LoyalPointsThreshold,
		HighSpend:   sys.HighSpendThreshold,
	}, nil
}

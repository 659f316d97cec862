package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Repository persists the settings document.
type Repository interface {
	Get(ctx context.Context) (Settings, error)
	Init(ctx context.Context, s Settings) error
	SaveGeneral(ctx context.Context, g General, at time.Time) error
	SaveSystem(ctx context.Context, s System, at time.Time) error
	SaveBackupInfo(ctx context.Context, info BackupInfo) error
}

type repository struct {
	db db.DBTX
}

// NewRepository returns a PostgreSQL settings repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Get(ctx context.Context) (Settings, error) {
	var s Settings
	var tax, highSpend int64
	err := r.db.QueryRow(ctx, `SELECT pharmacy_name, address, phone, email, currency,
			tax_rate_bp, low_stock_threshold, expiry_alert_days, loyal_points_threshold, high_spend_threshold,
			last_backup_date, database_size, updated_at
		FROM settings WHERE id = $1`, DocumentID).Scan(
		&s.General.PharmacyName, &s.General.Address, &s.General.Phone, &s.General.Email, &s.General.Currency,
		&tax, &s.System.LowStockThreshold, &s.System.ExpiryAlertDays, &s.System.LoyalPointsThreshold, &highSpend,
		&s.Backup.LastBackupDate, &s.Backup.DatabaseSize, &s.UpdatedAt)
	if db.IsNoRows(err) {
		return Settings{}, fmt.Errorf("settings: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Settings{}, err
	}
	s.System.TaxRate = shared.BasisPoints(tax)
	s.System.HighSpendThreshold = shared.Money(highSpend)
	return s, nil
}

// Init inserts s unless a document already exists.
func (r *repository) Init(ctx context.Context, s Settings) error {
	_, err := r.db.Exec(ctx, `INSERT INTO settings (id, pharmacy_name, address, phone, email, currency,
			tax_rate_bp, low_stock_threshold, expiry_alert_days, loyal_points_threshold, high_spend_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		DocumentID, s.General.PharmacyName, s.General.Address, s.General.Phone, s.General.Email, s.General.Currency,
		int64(s.System.TaxRate), s.System.LowStockThreshold, s.System.ExpiryAlertDays, s.System.LoyalPointsThreshold,
		int64(s.System.HighSpendThreshold), s.UpdatedAt)
	return err
}

func (r *repository) SaveGeneral(ctx context.Context, g General, at time.Time) error {
	return r.exec(ctx, `UPDATE settings SET pharmacy_name = $2, address = $3, phone = $4, email = $5, currency = $6, updated_at = $7
		WHERE id = $1`, DocumentID, g.PharmacyName, g.Address, g.Phone, g.Email, g.Currency, at)
}

func (r *repository) SaveSystem(ctx context.Context, s System, at time.Time) error {
	return r.exec(ctx, `UPDATE settings SET tax_rate_bp = $2, low_stock_threshold = $3, expiry_alert_days = $4,
			loyal_points_threshold = $5, high_spend_threshold = $6, updated_at = $7
		WHERE id = $1`, DocumentID, int64(s.TaxRate), s.LowStockThreshold, s.ExpiryAlertDays, s.LoyalPointsThreshold,
		int64(s.HighSpendThreshold), at)
}

func (r *repository) SaveBackupInfo(ctx context.Context, info BackupInfo) error {
	return r.exec(ctx, `UPDATE settings SET last_backup_date = $2, database_size = $3 WHERE id = $1`,
		DocumentID, info.LastBackupDate, info.DatabaseSize)
}

func (r *repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settings: %w", shared.ErrNotFound)
	}
	return nil
}

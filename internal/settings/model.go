package settings

import (
	"time"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// DocumentID identifies the single settings row.
const DocumentID = "main"

// General holds the pharmacy's identity.
type General struct {
	PharmacyName string `json:"pharmacy_name"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Currency     string `json:"currency"`
}

// System holds the business thresholds used by checkout, catalog and reports.
type System struct {
	TaxRate              shared.BasisPoints `json:"tax_rate"`
	LowStockThreshold    int                `json:"low_stock_threshold"`
	ExpiryAlertDays      int                `json:"expiry_alert_days"`
	LoyalPointsThreshold int64              `json:"loyal_points_threshold"`
	HighSpendThreshold   shared.Money       `json:"high_spend_threshold"`
}

// BackupInfo records the last export.
type BackupInfo struct {
	LastBackupDate *time.Time `json:"last_backup_date,omitempty"`
	DatabaseSize   int64      `json:"database_size"`
}

// Settings is the configuration document.
type Settings struct {
	General   General    `json:"general"`
	System    System     `json:"system"`
	Backup    BackupInfo `json:"backup"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Defaults returns the document created on first read.
func Defaults() Settings {
	return Settings{
		General: General{PharmacyName: "Pharmacy", Currency: "SAR"},
		System: System{
			TaxRate:              1500,
			LowStockThreshold:    50,
			ExpiryAlertDays:      30,
			LoyalPointsThreshold: 500,
			HighSpendThreshold:   100000,
		},
	}
}

// UpdateGeneralRequest replaces the general section.
type UpdateGeneralRequest struct {
	PharmacyName string `json:"pharmacy_name" validate:"required,max=200"`
	Address      string `json:"address" validate:"max=500"`
	Phone        string `json:"phone" validate:"max=40"`
	Email        string `json:"email" validate:"omitempty,email,max=254"`
	Currency     string `json:"currency" validate:"required,len=3,alpha"`
}

// UpdateSystemRequest replaces the system section.
type UpdateSystemRequest struct {
	TaxRate              shared.BasisPoints `json:"tax_rate" validate:"gte=0,lte=10000"`
	LowStockThreshold    int                `json:"low_stock_threshold" validate:"gte=0"`
	ExpiryAlertDays      int                `json:"expiry_alert_days" validate:"gte=0,lte=3650"`
	LoyalPointsThreshold int64              `json:"loyal_points_threshold" validate:"gte=0"`
	HighSpendThreshold   shared.Money       `json:"high_spend_threshold" validate:"gte=0"`
}

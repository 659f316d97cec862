package catalog

import (
	"time"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// DefaultUnitType is used when a product is created without a unit label.
const DefaultUnitType = "box"

// DateLayout is the wire format for expiry dates.
const DateLayout = "2006-01-02"

// Product is a stocked item.
type Product struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Barcode          string       `json:"barcode"`
	Price            shared.Money `json:"price"`
	PurchasePrice    shared.Money `json:"purchase_price"`
	Quantity         int          `json:"quantity"`
	UnitType         string       `json:"unit_type"`
	ActiveIngredient string       `json:"active_ingredient"`
	ExpiryDate       *time.Time   `json:"expiry_date,omitempty"`
	SupplierID       string       `json:"supplier_id"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Thresholds drive the derived stock flags.
type Thresholds struct {
	LowStock   int
	ExpiryDays int
}

// DefaultThresholds mirrors the settings defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{LowStock: 50, ExpiryDays: 30}
}

// ProductView is a product with its derived stock flags.
type ProductView struct {
	Product
	LowStock   bool `json:"low_stock"`
	Expired    bool `json:"expired"`
	NearExpiry bool `json:"near_expiry"`
}

// IsLowStock reports quantity < threshold.
func (p Product) IsLowStock(threshold int) bool {
	return p.Quantity < threshold
}

// IsExpired reports an expiry date strictly before the day of now.
func (p Product) IsExpired(now time.Time) bool {
	if p.ExpiryDate == nil {
		return false
	}
	return p.ExpiryDate.Before(startOfDay(now))
}

// IsNearExpiry reports an unexpired product expiring within days of now.
func (p Product) IsNearExpiry(now time.Time, days int) bool {
	if p.ExpiryDate == nil || p.IsExpired(now) {
		return false
	}
	limit := startOfDay(now).AddDate(0, 0, days)
	return !p.ExpiryDate.After(limit)
}

// View computes the derived flags.
func (p Product) View(th Thresholds, now time.Time) ProductView {
	return ProductView{
		Product:    p,
		LowStock:   p.IsLowStock(th.LowStock),
		Expired:    p.IsExpired(now),
		NearExpiry: p.IsNearExpiry(now, th.ExpiryDays),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package customers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Customer is a registered buyer. TotalDebt mirrors the sum of the customer's remaining debt.
type Customer struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Phone          string       `json:"phone"`
	Email          string       `json:"email"`
	Address        string       `json:"address"`
	TotalPurchases shared.Money `json:"total_purchases"`
	TotalDebt      shared.Money `json:"total_debt"`
	LoyaltyPoints  int64        `json:"loyalty_points"`
	LastVisit      *time.Time   `json:"last_visit,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Stats summarises the customer registry.
type Stats struct {
	TotalCustomers   int          `json:"total_customers"`
	WithDebt         int          `json:"customers_with_debt"`
	AveragePurchases shared.Money `json:"average_purchases"`
	TotalDebt        shared.Money `json:"total_debt"`
}

// Summarize computes registry statistics.
func Summarize(list []Customer) Stats {
	var stats Stats
	var purchases int64
	for _, c := range list {
		stats.TotalCustomers++
		purchases += int64(c.TotalPurchases)
		if c.TotalDebt > 0 {
			stats.WithDebt++
			stats.TotalDebt += c.TotalDebt
		}
	}
	if stats.TotalCustomers > 0 {
		avg := decimal.NewFromInt(purchases).Div(decimal.NewFromInt(int64(stats.TotalCustomers)))
		stats.AveragePurchases = shared.Money(avg.Round(0).IntPart())
	}
	return stats
}

// LoyaltyPointsFor returns one point per whole currency unit of total.
func LoyaltyPointsFor(total shared.Money) int64 {
	if total <= 0 {
		return 0
	}
	return total.Whole()
}

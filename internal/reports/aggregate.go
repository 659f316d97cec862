package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/customers"
	"github.com/pharmadesk/pharmadesk/internal/debts"
	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// TopN is the length of ranked lists.
const TopN = 5

// Thresholds partition products and customers.
type Thresholds struct {
	LowStock    int
	ExpiryDays  int
	LoyalPoints int64
	HighSpend   shared.Money
}

// DefaultThresholds mirrors the settings defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{LowStock: 50, ExpiryDays: 30, LoyalPoints: 500, HighSpend: 100000}
}

// ProductSales is one row of the best sellers list.
type ProductSales struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Quantity  int          `json:"quantity"`
	Revenue   shared.Money `json:"revenue"`
}

// SalesReport summarises revenue.
type SalesReport struct {
	Total       shared.Money   `json:"total"`
	Daily       shared.Money   `json:"daily"`
	Monthly     shared.Money   `json:"monthly"`
	Count       int            `json:"count"`
	Average     shared.Money   `json:"average"`
	TopProducts []ProductSales `json:"top_products"`
}

// BuildSales aggregates sales relative to now. Best sellers are ranked by
// quantity; ties keep the order in which products were first seen.
func BuildSales(list []sales.Sale, now time.Time) SalesReport {
	report := SalesReport{TopProducts: []ProductSales{}}
	dayStart := startOfDay(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	index := map[string]int{}
	var ranked []ProductSales
	for _, s := range list {
		report.Count++
		report.Total += s.Total
		if !s.CreatedAt.Before(dayStart) {
			report.Daily += s.Total
		}
		if !s.CreatedAt.Before(monthStart) {
			report.Monthly += s.Total
		}
		for _, l := range s.Lines {
			key := l.ProductID
			if key == "" {
				key = "name:" + l.Name
			}
			i, ok := index[key]
			if !ok {
				i = len(ranked)
				index[key] = i
				ranked = append(ranked, ProductSales{ProductID: l.ProductID, Name: l.Name})
			}
			ranked[i].Quantity += l.Quantity
			ranked[i].Revenue += l.Total()
		}
	}
	if report.Count > 0 {
		avg := decimal.NewFromInt(int64(report.Total)).Div(decimal.NewFromInt(int64(report.Count)))
		report.Average = shared.Money(avg.Round(0).IntPart())
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Quantity > ranked[j].Quantity })
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	report.TopProducts = append(report.TopProducts, ranked...)
	return report
}

// ProductRef names a product in an inventory partition.
type ProductRef struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

// InventoryReport partitions stock.
type InventoryReport struct {
	TotalProducts int          `json:"total_products"`
	TotalUnits    int          `json:"total_units"`
	StockValue    shared.Money `json:"stock_value"`
	LowStock      []ProductRef `json:"low_stock"`
	Expired       []ProductRef `json:"expired"`
	NearExpiry    []ProductRef `json:"near_expiry"`
}

// BuildInventory partitions products by stock level and expiry.
func BuildInventory(list []catalog.Product, th Thresholds, now time.Time) InventoryReport {
	report := InventoryReport{LowStock: []ProductRef{}, Expired: []ProductRef{}, NearExpiry: []ProductRef{}}
	for _, p := range list {
		report.TotalProducts++
		report.TotalUnits += p.Quantity
		report.StockValue += p.Price.Mul(p.Quantity)
		ref := ProductRef{ID: p.ID, Name: p.Name, Quantity: p.Quantity, ExpiryDate: p.ExpiryDate}
		if p.IsLowStock(th.LowStock) {
			report.LowStock = append(report.LowStock, ref)
		}
		switch {
		case p.IsExpired(now):
			report.Expired = append(report.Expired, ref)
		case p.IsNearExpiry(now, th.ExpiryDays):
			report.NearExpiry = append(report.NearExpiry, ref)
		}
	}
	return report
}

// DebtsReport partitions unpaid debts.
type DebtsReport struct {
	TotalOutstanding shared.Money `json:"total_outstanding"`
	TotalOverdue     shared.Money `json:"total_overdue"`
	Outstanding      []debts.Debt `json:"outstanding"`
	Overdue          []debts.Debt `json:"overdue"`
}

// BuildDebts lists debts with a remainder and those dated before today.
func BuildDebts(list []debts.Debt, now time.Time) DebtsReport {
	report := DebtsReport{Outstanding: []debts.Debt{}, Overdue: []debts.Debt{}}
	for _, d := range list {
		if d.RemainingAmount <= 0 {
			continue
		}
		report.TotalOutstanding += d.RemainingAmount
		report.Outstanding = append(report.Outstanding, d)
		if d.IsOverdue(now) {
			report.TotalOverdue += d.RemainingAmount
			report.Overdue = append(report.Overdue, d)
		}
	}
	return report
}

// CustomerRef names a customer in a ranked list.
type CustomerRef struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	TotalPurchases shared.Money `json:"total_purchases"`
	LoyaltyPoints  int64        `json:"loyalty_points"`
}

// CustomersReport partitions the registry.
type CustomersReport struct {
	TotalCustomers int           `json:"total_customers"`
	NewThisMonth   int           `json:"new_this_month"`
	Loyal          int           `json:"loyal"`
	HighSpending   []CustomerRef `json:"high_spending"`
}

// BuildCustomers counts new and loyal customers and ranks high spenders.
func BuildCustomers(list []customers.Customer, th Thresholds, now time.Time) CustomersReport {
	report := CustomersReport{HighSpending: []CustomerRef{}}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	var spenders []CustomerRef
	for _, c := range list {
		report.TotalCustomers++
		if !c.CreatedAt.Before(monthStart) {
			report.NewThisMonth++
		}
		if c.LoyaltyPoints > th.LoyalPoints {
			report.Loyal++
		}
		if c.TotalPurchases > th.HighSpend {
			spenders = append(spenders, CustomerRef{ID: c.ID, Name: c.Name, TotalPurchases: c.TotalPurchases, LoyaltyPoints: c.LoyaltyPoints})
		}
	}
	sort.SliceStable(spenders, func(i, j int) bool { return spenders[i].TotalPurchases > spenders[j].TotalPurchases })
	if len(spenders) > TopN {
		spenders = spenders[:TopN]
	}
	report.HighSpending = append(report.HighSpending, spenders...)
	return report
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

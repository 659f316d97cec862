package debts

import (
	"fmt"
	"time"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Debt statuses.
const (
	StatusOutstanding   = "outstanding"
	StatusPartiallyPaid = "partially_paid"
	StatusPaid          = "paid"
)

// Debt is the receivable created by a credit sale.
type Debt struct {
	ID              string       `json:"id"`
	CustomerID      string       `json:"customer_id"`
	SaleID          string       `json:"sale_id"`
	InvoiceNumber   string       `json:"invoice_number"`
	Amount          shared.Money `json:"amount"`
	AmountPaid      shared.Money `json:"amount_paid"`
	RemainingAmount shared.Money `json:"remaining_amount"`
	Status          string       `json:"status"`
	DebtDate        time.Time    `json:"debt_date"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Payments        []Payment    `json:"payments,omitempty"`
}

// Payment is one application of money against a debt.
type Payment struct {
	ID         string       `json:"id"`
	DebtID     string       `json:"debt_id"`
	CustomerID string       `json:"customer_id"`
	Amount     shared.Money `json:"amount"`
	ReceivedBy string       `json:"received_by,omitempty"`
	PaidAt     time.Time    `json:"paid_at"`
}

// New opens a debt for a credit sale: nothing paid, everything remaining.
// A zero total is settled from the start.
func New(id, customerID, saleID, invoice string, total shared.Money, at time.Time) Debt {
	status := StatusOutstanding
	if total <= 0 {
		status = StatusPaid
	}
	return Debt{
		ID:              id,
		CustomerID:      customerID,
		SaleID:          saleID,
		InvoiceNumber:   invoice,
		Amount:          total,
		RemainingAmount: total,
		Status:          status,
		DebtDate:        at,
		UpdatedAt:       at,
	}
}

// Apply returns the debt after paying amount. The input is never modified.
func (d Debt) Apply(amount shared.Money, at time.Time) (Debt, error) {
	if amount <= 0 {
		return d, fmt.Errorf("%w: payment amount must be positive", shared.ErrInvalidInput)
	}
	if amount > d.RemainingAmount {
		return d, fmt.Errorf("%w: %s exceeds remaining %s", shared.ErrOverPayment, amount, d.RemainingAmount)
	}
	next := d
	next.Payments = nil
	next.AmountPaid += amount
	next.RemainingAmount -= amount
	next.Status = StatusPartiallyPaid
	if next.RemainingAmount == 0 {
		next.Status = StatusPaid
	}
	next.UpdatedAt = at
	return next, nil
}

// IsOverdue reports an unpaid debt dated before the start of today.
func (d Debt) IsOverdue(now time.Time) bool {
	if d.RemainingAmount <= 0 {
		return false
	}
	y, m, day := now.Date()
	return d.DebtDate.Before(time.Date(y, m, day, 0, 0, 0, 0, now.Location()))
}

// Summary aggregates the ledger.
type Summary struct {
	TotalAmount       shared.Money `json:"total_amount"`
	TotalOutstanding  shared.Money `json:"total_outstanding"`
	CustomersWithDebt int          `json:"customers_with_debt"`
	PaidThisMonth     shared.Money `json:"paid_this_month"`
}

// Summarize computes the ledger summary from the debts and this month's collections.
func Summarize(list []Debt, paidThisMonth shared.Money) Summary {
	s := Summary{PaidThisMonth: paidThisMonth}
	customers := map[string]struct{}{}
	for _, d := range list {
		s.TotalAmount += d.Amount
		s.TotalOutstanding += d.RemainingAmount
		if d.RemainingAmount > 0 {
			customers[d.CustomerID] = struct{}{}
		}
	}
	s.CustomersWithDebt = len(customers)
	return s
}

// MonthBounds returns the start of now's calendar month and the start of the next.
func MonthBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// Filter narrows a debt listing.
type Filter struct {
	Status     string
	CustomerID string
}

// PaymentRequest is the body of a payment.
type PaymentRequest struct {
	Amount shared.Money `json:"amount"`
}

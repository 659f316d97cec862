package sales

import (
	"time"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Payment methods accepted at checkout.
const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentCredit = "credit_sale"
)

// Sale statuses.
const (
	StatusPaid = "paid"
	StatusDebt = "debt"
)

// ValidPaymentMethod reports whether method is accepted.
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentCredit:
		return true
	}
	return false
}

// StatusFor returns the sale status implied by the payment method.
func StatusFor(method string) string {
	if method == PaymentCredit {
		return StatusDebt
	}
	return StatusPaid
}

// Line is a denormalised line item frozen at sale time.
type Line struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Barcode   string       `json:"barcode"`
	UnitPrice shared.Money `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	Unit      string       `json:"unit"`
}

// Total returns unit price times quantity.
func (l Line) Total() shared.Money {
	return l.UnitPrice.Mul(l.Quantity)
}

// Sale is an immutable record of a committed checkout.
type Sale struct {
	ID            string             `json:"id"`
	InvoiceNumber string             `json:"invoice_number"`
	Lines         []Line             `json:"lines"`
	Subtotal      shared.Money       `json:"subtotal"`
	Discount      shared.Money       `json:"discount"`
	Tax           shared.Money       `json:"tax"`
	Total         shared.Money       `json:"total"`
	TaxRate       shared.BasisPoints `json:"tax_rate"`
	PaymentMethod string             `json:"payment_method"`
	CustomerID    string             `json:"customer_id,omitempty"`
	SellerID      string             `json:"seller_id,omitempty"`
	Status        string             `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Filter narrows a sale listing.
type Filter struct {
	CustomerID string
	From       *time.Time
	To         *time.Time
	Limit      int
}

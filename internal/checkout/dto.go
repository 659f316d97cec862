package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// View is the cart as returned to clients.
type View struct {
	Lines    []CartLine `json:"lines"`
	Discount Discount   `json:"discount"`
	Totals   Totals     `json:"totals"`
}

// AddLineRequest adds a product by id. Quantity defaults to 1.
type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

func (r AddLineRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

// ScanRequest adds a product by barcode.
type ScanRequest struct {
	Barcode  string `json:"barcode" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func (r ScanRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

// QuantityRequest sets a line quantity.
type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

// DiscountRequest sets the discount. Value is an amount for mode "amount"
// and a percentage for mode "percent".
type DiscountRequest struct {
	Mode  string          `json:"mode" validate:"omitempty,oneof=amount percent"`
	Value decimal.Decimal `json:"value"`
}

func (r DiscountRequest) discount() Discount {
	if r.Mode == DiscountPercent {
		return Discount{Mode: DiscountPercent, Percent: shared.BasisPointsFromDecimal(r.Value)}
	}
	return Discount{Mode: DiscountAmount, Amount: shared.MoneyFromDecimal(r.Value)}
}

// CommitRequest finalises the cart.
type CommitRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash card credit_sale"`
	CustomerID    string `json:"customer_id"`
}

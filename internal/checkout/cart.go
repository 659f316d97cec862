package checkout

import (
	"fmt"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Discount modes.
const (
	DiscountAmount  = "amount"
	DiscountPercent = "percent"
)

// CartLine is a product held in the cart with the price captured when it was added.
type CartLine struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Barcode   string       `json:"barcode"`
	UnitPrice shared.Money `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	Unit      string       `json:"unit"`
}

// Total is unit price times quantity.
func (l CartLine) Total() shared.Money {
	return l.UnitPrice.Mul(l.Quantity)
}

// Discount is either a flat amount or a percentage of the subtotal.
type Discount struct {
	Mode    string             `json:"mode"`
	Amount  shared.Money       `json:"amount"`
	Percent shared.BasisPoints `json:"percent"`
}

// Cart is the order being assembled for one session.
type Cart struct {
	Lines    []CartLine `json:"lines"`
	Discount Discount   `json:"discount"`
}

// Totals are derived from the cart on every read.
type Totals struct {
	Subtotal      shared.Money       `json:"subtotal"`
	Discount      shared.Money       `json:"discount"`
	AfterDiscount shared.Money       `json:"after_discount"`
	TaxRate       shared.BasisPoints `json:"tax_rate"`
	Tax           shared.Money       `json:"tax"`
	Total         shared.Money       `json:"total"`
	Items         int                `json:"items"`
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// AddLine adds qty of p, merging into an existing line for the same product.
// The merged quantity must fit the on-hand stock. A merged line keeps its original price.
func (c *Cart) AddLine(p catalog.Product, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID != p.ID {
			continue
		}
		merged := c.Lines[i].Quantity + qty
		if merged > p.Quantity {
			return fmt.Errorf("%w: %s has %d on hand, cart needs %d", shared.ErrInsufficientStock, p.Name, p.Quantity, merged)
		}
		c.Lines[i].Quantity = merged
		return nil
	}
	if qty > p.Quantity {
		return fmt.Errorf("%w: %s has %d on hand, cart needs %d", shared.ErrInsufficientStock, p.Name, p.Quantity, qty)
	}
	unit := p.UnitType
	if unit == "" {
		unit = catalog.DefaultUnitType
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Barcode:   p.Barcode,
		UnitPrice: p.Price,
		Quantity:  qty,
		Unit:      unit,
	})
	return nil
}

// RemoveLine drops the line at index.
func (c *Cart) RemoveLine(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.Lines = append(c.Lines[:index], c.Lines[index+1:]...)
	return nil
}

// SetQuantity replaces the quantity of the line at index. qty <= 0 removes the line.
func (c *Cart) SetQuantity(index, qty int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	if qty <= 0 {
		return c.RemoveLine(index)
	}
	c.Lines[index].Quantity = qty
	return nil
}

// SetDiscount validates and stores the discount.
func (c *Cart) SetDiscount(d Discount) error {
	switch d.Mode {
	case "", DiscountAmount:
		if d.Amount < 0 {
			return fmt.Errorf("%w: discount cannot be negative", shared.ErrInvalidInput)
		}
		c.Discount = Discount{Mode: DiscountAmount, Amount: d.Amount}
	case DiscountPercent:
		if d.Percent < 0 || d.Percent > 10000 {
			return fmt.Errorf("%w: discount percent must be between 0 and 100", shared.ErrInvalidInput)
		}
		c.Discount = Discount{Mode: DiscountPercent, Percent: d.Percent}
	default:
		return fmt.Errorf("%w: unknown discount mode %q", shared.ErrInvalidInput, d.Mode)
	}
	return nil
}

// Totals recomputes every derived amount from the lines.
func (c *Cart) Totals(taxRate shared.BasisPoints) Totals {
	var t Totals
	for _, l := range c.Lines {
		t.Subtotal += l.Total()
		t.Items += l.Quantity
	}
	switch c.Discount.Mode {
	case DiscountPercent:
		t.Discount = t.Subtotal.Percent(c.Discount.Percent)
	default:
		t.Discount = c.Discount.Amount
	}
	if t.Discount > t.Subtotal {
		t.Discount = t.Subtotal
	}
	t.AfterDiscount = t.Subtotal - t.Discount
	t.TaxRate = taxRate
	t.Tax = t.AfterDiscount.Percent(taxRate)
	t.Total = t.AfterDiscount + t.Tax
	return t
}

func (c *Cart) checkIndex(index int) error {
	if index < 0 || index >= len(c.Lines) {
		return fmt.Errorf("%w: no cart line at index %d", shared.ErrInvalidInput, index)
	}
	return nil
}

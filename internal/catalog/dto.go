package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// CreateProductRequest carries the fields accepted on create. Anything omitted defaults to empty or zero.
type CreateProductRequest struct {
	Name             string       `json:"name" validate:"required,max=200"`
	Barcode          string       `json:"barcode" validate:"max=64"`
	Price            shared.Money `json:"price" validate:"gte=0"`
	PurchasePrice    shared.Money `json:"purchase_price" validate:"gte=0"`
	Quantity         int          `json:"quantity" validate:"gte=0"`
	UnitType         string       `json:"unit_type" validate:"max=32"`
	ActiveIngredient string       `json:"active_ingredient" validate:"max=200"`
	ExpiryDate       string       `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	SupplierID       string       `json:"supplier_id" validate:"max=64"`
}

// UpdateProductRequest carries a partial update. Nil fields are left untouched.
type UpdateProductRequest struct {
	Name             *string       `json:"name" validate:"omitempty,min=1,max=200"`
	Barcode          *string       `json:"barcode" validate:"omitempty,max=64"`
	Price            *shared.Money `json:"price" validate:"omitempty,gte=0"`
	PurchasePrice    *shared.Money `json:"purchase_price" validate:"omitempty,gte=0"`
	Quantity         *int          `json:"quantity" validate:"omitempty,gte=0"`
	UnitType         *string       `json:"unit_type" validate:"omitempty,max=32"`
	ActiveIngredient *string       `json:"active_ingredient" validate:"omitempty,max=200"`
	ExpiryDate       *string       `json:"expiry_date" validate:"omitempty"`
	SupplierID       *string       `json:"supplier_id" validate:"omitempty,max=64"`
}

// ParseExpiry converts the wire date. Empty means no expiry date.
func ParseExpiry(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: expiry_date must be YYYY-MM-DD", shared.ErrInvalidInput)
	}
	return &t, nil
}

// updates turns the request into a column map for the repository.
func (r UpdateProductRequest) updates() (map[string]any, error) {
	out := map[string]any{}
	if r.Name != nil {
		out["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Barcode != nil {
		out["barcode"] = strings.TrimSpace(*r.Barcode)
	}
	if r.Price != nil {
		out["price"] = int64(*r.Price)
	}
	if r.PurchasePrice != nil {
		out["purchase_price"] = int64(*r.PurchasePrice)
	}
	if r.Quantity != nil {
		out["quantity"] = *r.Quantity
	}
	if r.UnitType != nil {
		unit := strings.TrimSpace(*r.UnitType)
		if unit == "" {
			unit = DefaultUnitType
		}
		out["unit_type"] = unit
	}
	if r.ActiveIngredient != nil {
		out["active_ingredient"] = *r.ActiveIngredient
	}
	if r.ExpiryDate != nil {
		expiry, err := ParseExpiry(*r.ExpiryDate)
		if err != nil {
			return nil, err
		}
		out["expiry_date"] = expiry
	}
	if r.SupplierID != nil {
		out["supplier_id"] = strings.TrimSpace(*r.SupplierID)
	}
	return out, nil
}

package suppliers

import "time"

// Supplier statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Supplier is a vendor of products. ProductCount is derived from products.supplier_id.
type Supplier struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ContactPerson string     `json:"contact_person"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email"`
	Address       string     `json:"address"`
	Status        string     `json:"status"`
	ProductCount  int        `json:"product_count"`
	LastOrderDate *time.Time `json:"last_order_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateSupplierRequest registers a supplier.
type CreateSupplierRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=200"`
	Phone         string `json:"phone" validate:"max=40"`
	Email         string `json:"email" validate:"omitempty,email,max=254"`
	Address       string `json:"address" validate:"max=500"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
	LastOrderDate string `json:"last_order_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateSupplierRequest is a partial update.
type UpdateSupplierRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=200"`
	ContactPerson *string `json:"contact_person" validate:"omitempty,max=200"`
	Phone         *string `json:"phone" validate:"omitempty,max=40"`
	Email         *string `json:"email" validate:"omitempty,email,max=254"`
	Address       *string `json:"address" validate:"omitempty,max=500"`
	Status        *string `json:"status" validate:"omitempty,oneof=active inactive"`
	LastOrderDate *string `json:"last_order_date" validate:"omitempty,datetime=2006-01-02"`
}

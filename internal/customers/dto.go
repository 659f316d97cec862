package customers

import "strings"

// CreateCustomerRequest registers a customer.
type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=40"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
	Address string `json:"address" validate:"max=500"`
}

// UpdateCustomerRequest edits contact fields. Nil fields are left untouched.
// Purchase, debt and loyalty totals are maintained by checkout and payments only.
type UpdateCustomerRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=200"`
	Phone   *string `json:"phone" validate:"omitempty,max=40"`
	Email   *string `json:"email" validate:"omitempty,email,max=254"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

func (r UpdateCustomerRequest) updates() map[string]any {
	out := map[string]any{}
	if r.Name != nil {
		out["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Phone != nil {
		out["phone"] = strings.TrimSpace(*r.Phone)
	}
	if r.Email != nil {
		out["email"] = strings.TrimSpace(*r.Email)
	}
	if r.Address != nil {
		out["address"] = *r.Address
	}
	return out
}

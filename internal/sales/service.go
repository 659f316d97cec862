package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Service exposes the sale read model.
type Service struct {
	repo Repository
}

// NewService wires a sale reader.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns sales newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Sale, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, fmt.Errorf("%w: from must be before to", shared.ErrInvalidInput)
	}
	return s.repo.List(ctx, filter)
}

// Get returns one sale with its lines.
func (s *Service) Get(ctx context.Context, id string) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// ByInvoice looks a sale up by invoice number.
func (s *Service) ByInvoice(ctx context.Context, number string) (Sale, error) {
	return s.repo.GetByInvoice(ctx, number)
}

// ForCustomer lists the sales of one customer.
func (s *Service) ForCustomer(ctx context.Context, customerID string) ([]Sale, error) {
	return s.repo.List(ctx, Filter{CustomerID: customerID})
}

// ParseDay parses a YYYY-MM-DD query value in loc.
func ParseDay(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a date", shared.ErrInvalidInput, raw)
	}
	return &t, nil
}

package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Service implements the customer registry.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires a customer service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, validate: validator.New(), now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// Stats summarises the registry.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list customers: %w", err)
	}
	return Summarize(list), nil
}

// Create registers a customer with zeroed totals.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := shared.Validate(s.validate, req); err != nil {
		return Customer{}, err
	}
	now := s.now().UTC()
	c := Customer{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     req.Email,
		Address:   req.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.logger.Info("customer created", slog.String("customer_id", c.ID))
	return c, nil
}

// Update edits contact fields.
func (s *Service) Update(ctx context.Context, id string, req UpdateCustomerRequest) (Customer, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return Customer{}, err
	}
	updates := req.updates()
	if name, ok := updates["name"].(string); ok && name == "" {
		return Customer{}, fmt.Errorf("%w: name cannot be blank", shared.ErrInvalidInput)
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return Customer{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes the customer. Debts and sales keep their dangling references.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", slog.String("customer_id", id))
	return nil
}

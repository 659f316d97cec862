package suppliers

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

// Service implements the supplier registry.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires a supplier service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, validate: validator.New(), now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Supplier, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateSupplierRequest) (Supplier, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := shared.Validate(s.validate, req); err != nil {
		return Supplier{}, err
	}
	lastOrder, err := parseDate(req.LastOrderDate)
	if err != nil {
		return Supplier{}, err
	}
	status := req.Status
	if status == "" {
		status = StatusActive
	}
	now := s.now().UTC()
	sup := Supplier{
		ID:            uuid.NewString(),
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Address:       req.Address,
		Status:        status,
		LastOrderDate: lastOrder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, sup); err != nil {
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	s.logger.Info("supplier created", slog.String("supplier_id", sup.ID))
	return sup, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateSupplierRequest) (Supplier, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return Supplier{}, err
	}
	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return Supplier{}, fmt.Errorf("%w: name cannot be blank", shared.ErrInvalidInput)
		}
		updates["name"] = name
	}
	if req.ContactPerson != nil {
		updates["contact_person"] = strings.TrimSpace(*req.ContactPerson)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.LastOrderDate != nil {
		d, err := parseDate(*req.LastOrderDate)
		if err != nil {
			return Supplier{}, err
		}
		updates["last_order_date"] = d
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return Supplier{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a supplier. Products keep their supplier reference.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("supplier deleted", slog.String("supplier_id", id))
	return nil
}

func parseDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a date", shared.ErrInvalidInput, raw)
	}
	return &t, nil
}

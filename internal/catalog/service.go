package catalog

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

// ThresholdSource supplies the current low-stock and expiry thresholds.
type ThresholdSource interface {
	CatalogThresholds(ctx context.Context) (Thresholds, error)
}

// StaticThresholds is a ThresholdSource with fixed values.
type StaticThresholds Thresholds

// CatalogThresholds implements ThresholdSource.
func (s StaticThresholds) CatalogThresholds(context.Context) (Thresholds, error) {
	return Thresholds(s), nil
}

// Service implements catalog operations.
type Service struct {
	repo       Repository
	thresholds ThresholdSource
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

// NewService wires a catalog service.
func NewService(repo Repository, thresholds ThresholdSource, logger *slog.Logger) *Service {
	if thresholds == nil {
		thresholds = StaticThresholds(DefaultThresholds())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		thresholds: thresholds,
		logger:     logger,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// List returns every product with derived flags.
func (s *Service) List(ctx context.Context) ([]ProductView, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return s.views(ctx, products)
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id string) (ProductView, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProductView{}, err
	}
	return s.view(ctx, p)
}

// Product returns the raw stored product, used by checkout.
func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	return s.repo.Get(ctx, id)
}

// FindByBarcode looks a product up by exact barcode.
func (s *Service) FindByBarcode(ctx context.Context, barcode string) (ProductView, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return ProductView{}, fmt.Errorf("%w: barcode required", shared.ErrInvalidInput)
	}
	p, err := s.repo.FindByBarcode(ctx, barcode)
	if err != nil {
		return ProductView{}, err
	}
	return s.view(ctx, p)
}

// Search runs a case-sensitive prefix search on name and barcode. Name matches come first.
func (s *Service) Search(ctx context.Context, term string) ([]ProductView, error) {
	if term == "" {
		return s.List(ctx)
	}
	upper := PrefixUpperBound(term)
	byName, err := s.repo.SearchPrefix(ctx, "name", term, upper)
	if err != nil {
		return nil, fmt.Errorf("search by name: %w", err)
	}
	byBarcode, err := s.repo.SearchPrefix(ctx, "barcode", term, upper)
	if err != nil {
		return nil, fmt.Errorf("search by barcode: %w", err)
	}
	return s.views(ctx, MergeMatches(byName, byBarcode))
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (ProductView, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := shared.Validate(s.validate, req); err != nil {
		return ProductView{}, err
	}
	expiry, err := ParseExpiry(req.ExpiryDate)
	if err != nil {
		return ProductView{}, err
	}
	unit := strings.TrimSpace(req.UnitType)
	if unit == "" {
		unit = DefaultUnitType
	}
	now := s.now().UTC()
	p := Product{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Barcode:          strings.TrimSpace(req.Barcode),
		Price:            req.Price,
		PurchasePrice:    req.PurchasePrice,
		Quantity:         req.Quantity,
		UnitType:         unit,
		ActiveIngredient: req.ActiveIngredient,
		ExpiryDate:       expiry,
		SupplierID:       strings.TrimSpace(req.SupplierID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return ProductView{}, fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("product created", slog.String("product_id", p.ID), slog.String("name", p.Name))
	return s.view(ctx, p)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, req UpdateProductRequest) (ProductView, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return ProductView{}, err
	}
	updates, err := req.updates()
	if err != nil {
		return ProductView{}, err
	}
	if name, ok := updates["name"].(string); ok && name == "" {
		return ProductView{}, fmt.Errorf("%w: name cannot be blank", shared.ErrInvalidInput)
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return ProductView{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes a product unconditionally. Sales and debts keep their references.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", slog.String("product_id", id))
	return nil
}

func (s *Service) view(ctx context.Context, p Product) (ProductView, error) {
	th, err := s.thresholds.CatalogThresholds(ctx)
	if err != nil {
		return ProductView{}, fmt.Errorf("load thresholds: %w", err)
	}
	return p.View(th, s.now()), nil
}

func (s *Service) views(ctx context.Context, products []Product) ([]ProductView, error) {
	th, err := s.thresholds.CatalogThresholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	now := s.now()
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, p.View(th, now))
	}
	return out, nil
}

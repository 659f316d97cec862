package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Service reads and edits the settings document.
type Service struct {
	repo     Repository
	audit    shared.AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the settings service.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, validate: validator.New(), now: time.Now}
}

// Get returns the document, creating it with defaults on first read.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	current, err := s.repo.Get(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	defaults := Defaults()
	defaults.UpdatedAt = s.now().UTC()
	if err := s.repo.Init(ctx, defaults); err != nil {
		return Settings{}, fmt.Errorf("init settings: %w", err)
	}
	s.logger.Info("settings initialised with defaults")
	return s.repo.Get(ctx)
}

// UpdateGeneral replaces the general section.
func (s *Service) UpdateGeneral(ctx context.Context, req UpdateGeneralRequest) (Settings, error) {
	req.PharmacyName = strings.TrimSpace(req.PharmacyName)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := shared.Validate(s.validate, req); err != nil {
		return Settings{}, err
	}
	if _, err := s.Get(ctx); err != nil {
		return Settings{}, err
	}
	g := General(req)
	if err := s.repo.SaveGeneral(ctx, g, s.now().UTC()); err != nil {
		return Settings{}, fmt.Errorf("save general settings: %w", err)
	}
	s.record(ctx, "settings.general", map[string]any{"pharmacy_name": g.PharmacyName, "currency": g.Currency})
	return s.repo.Get(ctx)
}

// UpdateSystem replaces the thresholds section.
func (s *Service) UpdateSystem(ctx context.Context, req UpdateSystemRequest) (Settings, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return Settings{}, err
	}
	if _, err := s.Get(ctx); err != nil {
		return Settings{}, err
	}
	sys := System(req)
	if err := s.repo.SaveSystem(ctx, sys, s.now().UTC()); err != nil {
		return Settings{}, fmt.Errorf("save system settings: %w", err)
	}
	s.record(ctx, "settings.system", map[string]any{
		"tax_rate":            sys.TaxRate.String(),
		"low_stock_threshold": sys.LowStockThreshold,
		"expiry_alert_days":   sys.ExpiryAlertDays,
	})
	return s.repo.Get(ctx)
}

// TaxRate returns the current tax rate.
func (s *Service) TaxRate(ctx context.Context) (shared.BasisPoints, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return current.System.TaxRate, nil
}

// System returns only the thresholds section.
func (s *Service) System(ctx context.Context) (System, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return System{}, err
	}
	return current.System, nil
}

func (s *Service) record(ctx context.Context, action string, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "settings",
		EntityID: DocumentID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit settings change", slog.Any("error", err), slog.String("action", action))
	}
}

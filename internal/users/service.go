package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, u User) error
	UpdateRole(ctx context.Context, id, role string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	DeleteUser(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role string) (int, error)
	RoleOf(ctx context.Context, userID string) (string, error)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	audit    shared.AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
	hashCost int
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		logger:   logger,
		validate: validator.New(),
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// RoleOf satisfies rbac.RoleLookup.
func (s *Service) RoleOf(ctx context.Context, userID string) (string, error) {
	return s.repo.RoleOf(ctx, userID)
}

// CreateUser validates the command, hashes the password and stores the account.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := shared.Validate(s.validate, req); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DisplayName(req.Email)
	}
	now := s.now()
	user := User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         name,
		Role:         req.Role,
		IsActive:     true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.record(ctx, "user.create", user.ID, map[string]any{"email": user.Email, "role": user.Role})
	return user, nil
}

// ChangeRole reassigns a role while keeping at least one doctor account.
func (s *Service) ChangeRole(ctx context.Context, id string, req ChangeRoleRequest) (User, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return User{}, err
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.Role == req.Role {
		return user, nil
	}
	if err := s.ensureAnotherDoctor(ctx, user); err != nil {
		return User{}, err
	}
	if err := s.repo.UpdateRole(ctx, id, req.Role); err != nil {
		return User{}, fmt.Errorf("update role: %w", err)
	}
	s.record(ctx, "user.role", id, map[string]any{"from": user.Role, "to": req.Role})
	user.Role = req.Role
	return user, nil
}

// DeleteUser removes an account other than the caller's own.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID != "" && actorID == id {
		return fmt.Errorf("%w: cannot delete your own account", shared.ErrInvalidInput)
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureAnotherDoctor(ctx, user); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.record(ctx, "user.delete", id, map[string]any{"email": user.Email})
	return nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := shared.Validate(s.validate, req); err != nil {
		return err
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.record(ctx, "user.password", userID, nil)
	return nil
}

func (s *Service) ensureAnotherDoctor(ctx context.Context, user User) error {
	if user.Role != "doctor" {
		return nil
	}
	n, err := s.repo.CountByRole(ctx, "doctor")
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: at least one doctor account must remain", shared.ErrInvalidInput)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action, id string, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: shared.ActorID(ctx), Action: action, Entity: "user", EntityID: id, Meta: meta})
	if err != nil {
		s.logger.Warn("audit user change", slog.String("action", action), slog.String("user_id", id), slog.Any("error", err))
	}
}

// DisplayName derives a name from the local part of an email address.
func DisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

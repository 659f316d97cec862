package rbac

import (
	"context"
	"sort"
)

// RoleLookup resolves the stored role of a user.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// Service resolves effective permissions from the stored role.
type Service struct {
	lookup RoleLookup
	policy Policy
}

// NewService constructs a Service. A nil policy uses DefaultPolicy.
func NewService(lookup RoleLookup, policy Policy) *Service {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Service{lookup: lookup, policy: policy}
}

// RoleOf returns the validated role of userID.
func (s *Service) RoleOf(ctx context.Context, userID string) (Role, error) {
	raw, err := s.lookup.RoleOf(ctx, userID)
	if err != nil {
		return "", err
	}
	return ParseRole(raw)
}

// EffectivePermissions lists the permissions granted to userID.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	role, err := s.RoleOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.PermissionsFor(role), nil
}

// PermissionsFor lists the permissions of role in sorted order.
func (s *Service) PermissionsFor(role Role) []string {
	perms := append([]string(nil), s.policy[role]...)
	sort.Strings(perms)
	return perms
}

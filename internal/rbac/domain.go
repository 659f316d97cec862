package rbac

import (
	"fmt"
	"strings"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Role is the access level stored per user.
type Role string

// Roles known to the system.
const (
	RoleDoctor    Role = "doctor"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RoleAssistant
}

// ParseRole normalises and validates a role name.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, raw)
	}
	return r, nil
}

// Permissions are page-level capabilities.
const (
	PermPOS             = "pos"
	PermInventoryView   = "inventory.view"
	PermInventoryManage = "inventory.manage"
	PermCustomersView   = "customers.view"
	PermCustomersManage = "customers.manage"
	PermSuppliersView   = "suppliers.view"
	PermSuppliersManage = "suppliers.manage"
	PermDebtsView       = "debts.view"
	PermDebtsCollect    = "debts.collect"
	PermReportsView     = "reports.view"
	PermSettingsManage  = "settings.manage"
	PermUsersManage     = "users.manage"
	PermBackupManage    = "backup.manage"
	PermJobsView        = "jobs.view"
	PermRecordsDelete   = "records.delete"
)

// Policy maps each role to its granted permissions.
type Policy map[Role][]string

// DefaultPolicy grants doctors everything and limits assistants to daily counter work.
func DefaultPolicy() Policy {
	return Policy{
		RoleDoctor: {
			PermPOS, PermInventoryView, PermInventoryManage,
			PermCustomersView, PermCustomersManage,
			PermSuppliersView, PermSuppliersManage,
			PermDebtsView, PermDebtsCollect,
			PermReportsView, PermSettingsManage, PermUsersManage, PermBackupManage, PermJobsView,
			PermRecordsDelete,
		},
		RoleAssistant: {
			PermPOS, PermInventoryView,
			PermCustomersView, PermCustomersManage,
			PermSuppliersView,
			PermDebtsView, PermDebtsCollect,
		},
	}
}

// Mode selects whether role checks block requests.
type Mode string

const (
	// ModeInformational logs denied role checks and lets the request through.
	ModeInformational Mode = "informational"
	// ModeEnforce rejects requests whose role lacks the permission.
	ModeEnforce Mode = "enforce"
)

// ParseMode validates the configured enforcement mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeInformational:
		return ModeInformational, nil
	case ModeEnforce:
		return ModeEnforce, nil
	default:
		return "", fmt.Errorf("rbac: unknown enforcement mode %q", raw)
	}
}

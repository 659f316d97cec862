package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/httpx"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// PermissionsHandler exposes the caller's role and pages.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireUser)
		r.Get("/me", h.mine)
	})
}

type permissionsResponse struct {
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
	Enforced    bool     `json:"enforced"`
}

func (h *PermissionsHandler) mine(w http.ResponseWriter, r *http.Request) {
	userID := shared.ActorID(r.Context())
	role, err := h.service.RoleOf(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve role failed", "error", err, "user_id", userID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		Role:        role,
		Permissions: h.service.PermissionsFor(role),
		Enforced:    h.rbac.Mode == ModeEnforce,
	})
}

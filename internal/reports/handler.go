package reports

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/httpx"
	"github.com/pharmadesk/pharmadesk/internal/rbac"
)

// Handler serves read-only reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermReportsView))
		r.Get("/", serve(h, "overview", h.service.Overview))
		r.Get("/sales", serve(h, "sales", h.service.Sales))
		r.Get("/inventory", serve(h, "inventory", h.service.Inventory))
		r.Get("/debts", serve(h, "debts", h.service.Debts))
		r.Get("/customers", serve(h, "customers", h.service.Customers))
	})
}

func serve[T any](h *Handler, name string, build func(context.Context) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := build(r.Context())
		if err != nil {
			h.logger.Error("build report failed", "error", err, "report", name)
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, report)
	}
}

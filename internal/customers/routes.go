package customers

import (
	"github.com/go-chi/chi/v5"

	"github.com/pharmadesk/pharmadesk/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermCustomersView))
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/debts", h.Debts)
		r.Get("/{id}/sales", h.Sales)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermCustomersManage))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermRecordsDelete))
		r.Delete("/{id}", h.Delete)
	})
}

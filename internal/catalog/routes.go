package catalog

import (
	"github.com/go-chi/chi/v5"

	"github.com/pharmadesk/pharmadesk/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryView, rbac.PermPOS))
		r.Get("/products", h.List)
		r.Get("/products/search", h.Search)
		r.Get("/products/barcode/{code}", h.ByBarcode)
		r.Get("/products/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInventoryManage))
		r.Post("/products", h.Create)
		r.Put("/products/{id}", h.Update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermRecordsDelete))
		r.Delete("/products/{id}", h.Delete)
	})
}

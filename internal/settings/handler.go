package settings

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/httpx"
	"github.com/pharmadesk/pharmadesk/internal/rbac"
)

// Handler serves settings and backup endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	backup  *BackupService
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, backup *BackupService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, backup: backup, rbac: rbac}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireUser).Get("/", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSettingsManage))
		r.Put("/general", h.updateGeneral)
		r.Put("/system", h.updateSystem)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermBackupManage))
		r.Get("/backup", h.export)
		r.Post("/restore", h.restore)
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context())
	if err != nil {
		h.logger.Error("load settings failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) updateGeneral(w http.ResponseWriter, r *http.Request) {
	var req UpdateGeneralRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.UpdateGeneral(r.Context(), req)
	if err != nil {
		h.logger.Warn("update general settings failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) updateSystem(w http.ResponseWriter, r *http.Request) {
	var req UpdateSystemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.UpdateSystem(r.Context(), req)
	if err != nil {
		h.logger.Warn("update system settings failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filename, doc, err := h.backup.Export(r.Context())
	if err != nil {
		h.logger.Error("backup export failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		h.logger.Error("encode backup", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.Attachment(w, filename, body)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	var doc map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &doc); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.backup.Restore(r.Context(), doc)
	if err != nil {
		h.logger.Warn("backup restore failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

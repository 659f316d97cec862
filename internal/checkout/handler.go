package checkout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/httpx"
	"github.com/pharmadesk/pharmadesk/internal/rbac"
	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// ReceiptRenderer turns a sale into a printable PDF.
type ReceiptRenderer interface {
	RenderReceipt(ctx context.Context, sale sales.Sale) ([]byte, error)
}

// Handler serves the point of sale.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	receipts ReceiptRenderer
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance. receipts may be nil when PDF rendering is not configured.
func NewHandler(logger *slog.Logger, service *Service, receipts ReceiptRenderer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, receipts: receipts, rbac: rbac}
}

// MountRoutes registers checkout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPOS))
		r.Get("/cart", h.withSession(h.cart))
		r.Delete("/cart", h.withSession(h.clear))
		r.Get("/cart/totals", h.withSession(h.totals))
		r.Post("/cart/lines", h.withSession(h.addLine))
		r.Post("/cart/scan", h.withSession(h.scan))
		r.Put("/cart/lines/{index}", h.withSession(h.setQuantity))
		r.Delete("/cart/lines/{index}", h.withSession(h.removeLine))
		r.Put("/cart/discount", h.withSession(h.setDiscount))
		r.Post("/cart/hold", h.withSession(h.hold))
		r.Post("/cart/resume", h.withSession(h.resume))
		r.Post("/commit", h.withSession(h.commit))
		r.Get("/last-invoice", h.withSession(h.lastInvoice))
		r.Get("/last-invoice/pdf", h.withSession(h.lastInvoicePDF))
	})
}

// withSession rejects requests that carry no session.
func (h *Handler) withSession(fn func(w http.ResponseWriter, r *http.Request, sid string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := shared.SessionID(r.Context())
		if sid == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		fn(w, r, sid)
	}
}

func (h *Handler) respondView(w http.ResponseWriter, op string, v View, err error) {
	if err != nil {
		h.logger.Warn(op+" failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) cart(w http.ResponseWriter, r *http.Request, sid string) {
	v, err := h.service.Cart(r.Context(), sid)
	h.respondView(w, "load cart", v, err)
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request, sid string) {
	t, err := h.service.Totals(r.Context(), sid)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request, sid string) {
	if err := h.service.Clear(r.Context(), sid); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request, sid string) {
	var req AddLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.AddLine(r.Context(), sid, req)
	h.respondView(w, "add cart line", v, err)
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request, sid string) {
	var req ScanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Scan(r.Context(), sid, req)
	h.respondView(w, "scan barcode", v, err)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request, sid string) {
	index, err := httpx.IntParam(r, "index")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req QuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.SetQuantity(r.Context(), sid, index, req.Quantity)
	h.respondView(w, "set quantity", v, err)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request, sid string) {
	index, err := httpx.IntParam(r, "index")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.RemoveLine(r.Context(), sid, index)
	h.respondView(w, "remove cart line", v, err)
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request, sid string) {
	var req DiscountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.SetDiscount(r.Context(), sid, req)
	h.respondView(w, "set discount", v, err)
}

func (h *Handler) hold(w http.ResponseWriter, r *http.Request, sid string) {
	if err := h.service.Hold(r.Context(), sid); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request, sid string) {
	v, err := h.service.Resume(r.Context(), sid)
	h.respondView(w, "resume cart", v, err)
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request, sid string) {
	var req CommitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Commit(r.Context(), sid, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Warn("checkout commit failed", "error", err, "payment_method", req.PaymentMethod)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) lastInvoice(w http.ResponseWriter, r *http.Request, sid string) {
	sale, err := h.service.LastInvoice(r.Context(), sid)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) lastInvoicePDF(w http.ResponseWriter, r *http.Request, sid string) {
	if h.receipts == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "pdf rendering is not configured")
		return
	}
	sale, err := h.service.LastInvoice(r.Context(), sid)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.receipts.RenderReceipt(r.Context(), sale)
	if err != nil {
		h.logger.Error("render receipt", "error", err, "invoice", sale.InvoiceNumber)
		httpx.RespondError(w, err)
		return
	}
	httpx.Attachment(w, sale.InvoiceNumber+".pdf", pdf)
}

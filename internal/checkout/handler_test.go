package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/rbac"
	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

type stubRoles map[string]string

func (s stubRoles) RoleOf(_ context.Context, id string) (string, error) {
	if role, ok := s[id]; ok {
		return role, nil
	}
	return "", shared.ErrNotFound
}

type fakeReceipts struct{ err error }

func (f fakeReceipts) RenderReceipt(_ context.Context, sale sales.Sale) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-" + sale.InvoiceNumber), nil
}

type handlerEnv struct {
	router http.Handler
	world  *world
}

func newHandlerEnv(t *testing.T, receipts ReceiptRenderer) handlerEnv {
	t.Helper()
	w := newWorld()
	w.products["p1"] = catalog.Product{ID: "p1", Name: "Ibuprofen", Barcode: "111", Price: 1500, Quantity: 8}
	store, _ := newRedisStore(t)
	invoices, err := NewInvoiceNumberer(5)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(w, Options{Store: store, Products: w, Invoices: invoices, Logger: logger})
	mw := rbac.Middleware{
		Service: rbac.NewService(stubRoles{"u1": "assistant"}, rbac.DefaultPolicy()),
		Logger:  logger,
		Mode:    rbac.ModeEnforce,
	}
	r := chi.NewRouter()
	r.Route("/checkout", NewHandler(logger, svc, receipts, mw).MountRoutes)
	return handlerEnv{router: r, world: w}
}

func (e handlerEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	sess := &shared.Session{ID: "sess-h"}
	sess.SetUser("u1", "assistant")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerScanAndCommit(t *testing.T) {
	env := newHandlerEnv(t, fakeReceipts{})

	rec := env.do(http.MethodPost, "/checkout/cart/scan", `{"barcode":"111","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPut, "/checkout/cart/discount", `{"mode":"percent","value":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodGet, "/checkout/cart/totals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subtotal":30.00,"discount":3.00,"after_discount":27.00,"tax_rate":15,"tax":4.05,"total":31.05,"items":2}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/checkout/commit", `{"payment_method":"cash"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 6, env.world.stock("p1"))

	rec = env.do(http.MethodGet, "/checkout/last-invoice/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-INV-"))
}

func TestHandlerMapsDomainErrors(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := env.do(http.MethodPost, "/checkout/commit", `{"payment_method":"cash"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(http.MethodPost, "/checkout/cart/lines", `{"product_id":"p1","quantity":9}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodDelete, "/checkout/cart/lines/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/checkout/last-invoice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/checkout/last-invoice/pdf", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerRenderFailure(t *testing.T) {
	env := newHandlerEnv(t, fakeReceipts{err: errors.Join(shared.ErrRemoteFailure, errors.New("gotenberg down"))})
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/checkout/cart/lines", `{"product_id":"p1"}`).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/checkout/commit", `{"payment_method":"card"}`).Code)

	rec := env.do(http.MethodGet, "/checkout/last-invoice/pdf", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

package suppliers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadesk/pharmadesk/internal/rbac"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

type memoryRepo struct {
	suppliers map[string]Supplier
}

func (m *memoryRepo) List(context.Context) ([]Supplier, error) {
	out := []Supplier{}
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) Create(_ context.Context, s Supplier) error {
	m.suppliers[s.ID] = s
	return nil
}

func (m *memoryRepo) Update(_ context.Context, id string, updates map[string]any) error {
	s, ok := m.suppliers[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["status"]; ok {
		s.Status = v.(string)
	}
	if v, ok := updates["name"]; ok {
		s.Name = v.(string)
	}
	m.suppliers[id] = s
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.suppliers[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.suppliers, id)
	return nil
}

type roles map[string]string

func (r roles) RoleOf(_ context.Context, userID string) (string, error) {
	role, ok := r[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func newRouter(repo *memoryRepo, mode rbac.Mode) http.Handler {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	mw := rbac.Middleware{
		Service: rbac.NewService(roles{"doc": "doctor", "asst": "assistant"}, rbac.DefaultPolicy()),
		Logger:  logger,
		Mode:    mode,
	}
	h := NewHandler(logger, NewService(repo, logger), mw)
	r := chi.NewRouter()
	r.Route("/suppliers", h.MountRoutes)
	return r
}

func as(req *http.Request, userID string) *http.Request {
	sess := &shared.Session{ID: "sess-" + userID}
	sess.SetUser(userID, "")
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestCreateDefaultsToActive(t *testing.T) {
	repo := &memoryRepo{suppliers: map[string]Supplier{}}
	router := newRouter(repo, rbac.ModeEnforce)

	req := as(httptest.NewRequest(http.MethodPost, "/suppliers/", strings.NewReader(`{"name":"Tabuk Pharma","email":"orders@tabuk.test"}`)), "doc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Supplier
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, StatusActive, created.Status)
	assert.Equal(t, "Tabuk Pharma", created.Name)
}

func TestAssistantCannotMutateWhenEnforced(t *testing.T) {
	repo := &memoryRepo{suppliers: map[string]Supplier{"s1": {ID: "s1", Name: "Jamjoom", Status: StatusActive}}}
	router := newRouter(repo, rbac.ModeEnforce)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodDelete, "/suppliers/s1", nil), "asst"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodGet, "/suppliers/s1", nil), "asst"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInformationalModeLetsAssistantThrough(t *testing.T) {
	repo := &memoryRepo{suppliers: map[string]Supplier{"s1": {ID: "s1", Name: "Jamjoom", Status: StatusActive}}}
	router := newRouter(repo, rbac.ModeInformational)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPut, "/suppliers/s1", strings.NewReader(`{"status":"inactive"}`)), "asst"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, StatusInactive, repo.suppliers["s1"].Status)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	repo := &memoryRepo{suppliers: map[string]Supplier{"s1": {ID: "s1", Name: "Jamjoom", Status: StatusActive}}}
	router := newRouter(repo, rbac.ModeEnforce)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPut, "/suppliers/s1", strings.NewReader(`{"status":"paused"}`)), "doc"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonymousRejected(t *testing.T) {
	router := newRouter(&memoryRepo{suppliers: map[string]Supplier{}}, rbac.ModeInformational)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/suppliers/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pharmadesk/pharmadesk/internal/auth"
	"github.com/pharmadesk/pharmadesk/internal/shared"
	_ "github.com/pharmadesk/pharmadesk/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id string) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = map[string]string{}
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type harness struct {
	handler  *auth.Handler
	sessions *shared.SessionManager
}

func newHarness(t *testing.T, repo auth.Repository) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	return harness{
		handler:  auth.NewHandler(nil, auth.NewService(repo), sessionManager, csrfManager),
		sessions: sessionManager,
	}
}

// serve runs one request through the session lifecycle the app middleware provides.
func (h harness) serve(t *testing.T, req *http.Request, fn http.HandlerFunc) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	fn(res, req)
	require.NoError(t, h.sessions.Commit(ctx, res, req, sess))
	return res, sess
}

func doctor(t *testing.T) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{ID: "u-1", Email: "doctor@pharmacy.test", Name: "doctor", Role: "doctor", PasswordHash: string(hashed), IsActive: true}
}

func TestLoginSuccessStoresUserAndRole(t *testing.T) {
	repo := &stubRepo{user: doctor(t)}
	h := newHarness(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"doctor@pharmacy.test","password":"correctpass"}`))
	res, sess := h.serve(t, req, h.handler.LoginForTest)

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		User      auth.Profile `json:"user"`
		CSRFToken string       `json:"csrf_token"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "u-1", body.User.ID)
	assert.Equal(t, "doctor", body.User.Role)
	assert.NotEmpty(t, body.CSRFToken)
	assert.Equal(t, "u-1", sess.User())
	assert.Equal(t, "doctor", sess.Role())
	assert.Equal(t, "u-1", repo.sessions[sess.ID])
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, &stubRepo{user: doctor(t)})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"doctor@pharmacy.test","password":"wrongpass"}`))
	res, sess := h.serve(t, req, h.handler.LoginForTest)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, sess.User())
}

func TestLoginInactiveUserRejected(t *testing.T) {
	user := doctor(t)
	user.IsActive = false
	h := newHarness(t, &stubRepo{user: user})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"doctor@pharmacy.test","password":"correctpass"}`))
	res, _ := h.serve(t, req, h.handler.LoginForTest)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t, &stubRepo{})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nope","password":""}`))
	res, _ := h.serve(t, req, h.handler.LoginForTest)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestNoticesSurviveUntilDrained(t *testing.T) {
	h := newHarness(t, &stubRepo{user: doctor(t)})

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"doctor@pharmacy.test","password":"correctpass"}`))
	_, sess := h.serve(t, login, h.handler.LoginForTest)

	first := httptest.NewRequest(http.MethodGet, "/auth/notices", nil)
	first.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID})
	res, _ := h.serve(t, first, h.handler.NoticesForTest)
	var notices []shared.FlashMessage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&notices))
	require.Len(t, notices, 1)
	assert.Equal(t, shared.NoticeSuccess, notices[0].Kind)

	second := httptest.NewRequest(http.MethodGet, "/auth/notices", nil)
	second.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID})
	res, _ = h.serve(t, second, h.handler.NoticesForTest)
	assert.JSONEq(t, `[]`, res.Body.String())
}

func TestMeRequiresSession(t *testing.T) {
	h := newHarness(t, &stubRepo{user: doctor(t)})
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res, _ := h.serve(t, req, h.handler.MeForTest)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

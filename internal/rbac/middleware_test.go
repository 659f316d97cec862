package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

type stubLookup map[string]string

func (s stubLookup) RoleOf(ctx context.Context, userID string) (string, error) {
	role, ok := s[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	sm := shared.NewSessionManager(nil, "t", "s", 0, false)
	sess, _ := sm.Load(context.Background(), req)
	if userID != "" {
		sess.SetUser(userID, "")
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func newMiddleware(mode Mode, logBuf *bytes.Buffer) Middleware {
	return Middleware{
		Service: NewService(stubLookup{"doc": "doctor", "asst": "assistant", "bad": "janitor"}, nil),
		Logger:  slog.New(slog.NewTextHandler(logBuf, nil)),
		Mode:    mode,
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestEnforceModeBlocksAssistant(t *testing.T) {
	mw := newMiddleware(ModeEnforce, &bytes.Buffer{})
	h := mw.RequireAll(PermSettingsManage)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("asst"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("doc"))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInformationalModeLogsAndAllows(t *testing.T) {
	buf := &bytes.Buffer{}
	mw := newMiddleware(ModeInformational, buf)
	h := mw.RequireAny(PermUsersManage, PermBackupManage)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("asst"))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Contains(t, buf.String(), "rbac check not enforced")
}

func TestAnonymousAlwaysRejected(t *testing.T) {
	for _, mode := range []Mode{ModeInformational, ModeEnforce} {
		mw := newMiddleware(mode, &bytes.Buffer{})
		rec := httptest.NewRecorder()
		mw.RequireAny(PermPOS)(okHandler).ServeHTTP(rec, requestAs(""))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = httptest.NewRecorder()
		mw.RequireUser(okHandler).ServeHTTP(rec, requestAs(""))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestUnknownStoredRoleIsRejected(t *testing.T) {
	mw := newMiddleware(ModeInformational, &bytes.Buffer{})
	rec := httptest.NewRecorder()
	mw.RequireAny(PermPOS)(okHandler).ServeHTTP(rec, requestAs("bad"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPermissionsHandlerMine(t *testing.T) {
	mw := newMiddleware(ModeEnforce, &bytes.Buffer{})
	h := NewPermissionsHandler(slog.Default(), mw.Service, mw)
	rec := httptest.NewRecorder()
	h.mine(rec, requestAs("asst"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body permissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, RoleAssistant, body.Role)
	require.True(t, body.Enforced)
	require.Contains(t, body.Permissions, PermPOS)
	require.NotContains(t, body.Permissions, PermUsersManage)
}

func TestParseModeAndRole(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeInformational, mode)
	mode, err = ParseMode("ENFORCE")
	require.NoError(t, err)
	require.Equal(t, ModeEnforce, mode)
	_, err = ParseMode("strict")
	require.Error(t, err)

	role, err := ParseRole(" Doctor ")
	require.NoError(t, err)
	require.Equal(t, RoleDoctor, role)
	_, err = ParseRole("admin")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

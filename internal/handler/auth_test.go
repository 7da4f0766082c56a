package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens/insight-gateway/internal/authsvc"
	"github.com/chatlens/insight-gateway/internal/config"
)

func newAuthFixture(t *testing.T, upstream http.HandlerFunc) *AuthHandler {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	return NewAuthHandler(authsvc.NewClient(srv.URL, 5*time.Second), false)
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	res := rec.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthLogin(t *testing.T) {
	t.Run("successful login sets HttpOnly cookie and hides token", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/login", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"token":   "jwt-token-value",
				"user":    map[string]any{"id": 1, "username": "alice"},
			})
		})

		req := httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"username":"alice","password":"secret"}`))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "jwt-token-value")

		cookie := findCookie(t, rec, config.AuthCookieName)
		require.NotNil(t, cookie)
		assert.Equal(t, "jwt-token-value", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	})

	t.Run("failed login forwards upstream body and status", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "Неверный логин или пароль",
			})
		})

		req := httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"username":"alice","password":"wrong"}`))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Неверный логин или пароль")
		assert.Nil(t, findCookie(t, rec, config.AuthCookieName))
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {})

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{broken`))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthLogout(t *testing.T) {
	h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(t, rec, config.AuthCookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestAuthMe(t *testing.T) {
	t.Run("no cookie is 401 without calling upstream", func(t *testing.T) {
		called := false
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) { called = true })

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("valid token returns profile", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"id": 1, "username": "alice"})
		})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: config.AuthCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "alice")
	})

	t.Run("upstream 401 clears the cookie", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: config.AuthCookieName, Value: "stale"})
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		cookie := findCookie(t, rec, config.AuthCookieName)
		require.NotNil(t, cookie)
		assert.Negative(t, cookie.MaxAge)
	})

	t.Run("other upstream failures forward the status", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: config.AuthCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Nil(t, findCookie(t, rec, config.AuthCookieName))
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("requires auth cookie", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {})

		req := httptest.NewRequest(http.MethodPost, "/change-password",
			strings.NewReader(`{"currentPassword":"a","newPassword":"b"}`))
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("requires both passwords", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {})

		req := httptest.NewRequest(http.MethodPost, "/change-password",
			strings.NewReader(`{"currentPassword":"a"}`))
		req.AddCookie(&http.Cookie{Name: config.AuthCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "текущий и новый пароль")
	})

	t.Run("success reports a message", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		})

		req := httptest.NewRequest(http.MethodPost, "/change-password",
			strings.NewReader(`{"currentPassword":"a","newPassword":"b"}`))
		req.AddCookie(&http.Cookie{Name: config.AuthCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Пароль успешно изменен")
	})

	t.Run("upstream rejection forwards status and message", func(t *testing.T) {
		h := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": "Неверный текущий пароль",
			})
		})

		req := httptest.NewRequest(http.MethodPost, "/change-password",
			strings.NewReader(`{"currentPassword":"a","newPassword":"b"}`))
		req.AddCookie(&http.Cookie{Name: config.AuthCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Неверный текущий пароль")
	})
}

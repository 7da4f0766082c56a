package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/authsvc"
	"github.com/chatlens/insight-gateway/internal/config"
)

// AuthHandler proxies the Auth service and owns the auth_token cookie.
// The token never appears in a response body; it travels HttpOnly.
type AuthHandler struct {
	auth   *authsvc.Client
	secure bool
}

func NewAuthHandler(auth *authsvc.Client, secure bool) *AuthHandler {
	return &AuthHandler{auth: auth, secure: secure}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
	r.Post("/change-password", h.ChangePassword)

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Некорректный запрос"})
		return
	}

	resp, status, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Error().Err(err).Msg("auth login failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Ошибка сервера",
			"user":    nil,
		})
		return
	}

	if resp.Success && resp.Token != "" {
		h.setAuthCookie(w, resp.Token)
		writeJSON(w, status, map[string]any{
			"success": resp.Success,
			"user":    resp.User,
			"error":   resp.Error,
		})
		return
	}

	writeJSON(w, status, resp)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(config.AuthCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, nil)
		return
	}

	user, status, err := h.auth.Me(r.Context(), cookie.Value)
	if err != nil {
		if status == http.StatusUnauthorized {
			// The token is no longer valid; drop the cookie so the UI
			// falls back to the login screen.
			h.clearAuthCookie(w)
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		log.Error().Err(err).Int("status", status).Msg("failed to fetch user data")
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, nil)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(config.AuthCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "Вы не авторизованы",
		})
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Необходимо указать текущий и новый пароль",
		})
		return
	}

	message, status, err := h.auth.ChangePassword(r.Context(), cookie.Value, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if status == 0 {
			status = http.StatusInternalServerError
		}
		msg := "Ошибка при смене пароля"
		if appErr, ok := asAppError(err); ok && appErr.Message != "" {
			msg = appErr.Message
		}
		writeJSON(w, status, map[string]any{
			"success": false,
			"message": msg,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(config.AuthCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

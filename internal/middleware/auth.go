package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatlens/insight-gateway/internal/config"
)

type contextKey string

const (
	TokenContextKey   contextKey = "authToken"
	UserKeyContextKey contextKey = "userKey"
)

// GetToken returns the Auth-service bearer token extracted from the
// request cookie, or "" outside the auth middleware.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(TokenContextKey).(string); ok {
		return token
	}
	return ""
}

// GetUserKey returns the stable key identifying the calling user's
// state container.
func GetUserKey(ctx context.Context) string {
	if key, ok := ctx.Value(UserKeyContextKey).(string); ok {
		return key
	}
	return ""
}

// AuthCookie rejects requests without the auth_token cookie and puts
// the bearer token plus a per-user state key on the context. The
// gateway never validates the token itself: the Auth service owns
// validity, and the Collector rejects stale tokens on use. The user key
// comes from the token's JWT subject claim when one is present,
// otherwise from a hash of the token.
type AuthCookie struct{}

func NewAuthCookie() *AuthCookie {
	return &AuthCookie{}
}

func (m *AuthCookie) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(config.AuthCookieName)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Не авторизован",
			})
			return
		}

		token := cookie.Value
		ctx := r.Context()
		ctx = context.WithValue(ctx, TokenContextKey, token)
		ctx = context.WithValue(ctx, UserKeyContextKey, userKey(token))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userKey(token string) string {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			return sub
		}
	}
	return hashToken(token)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

package middleware

import (
	"net/http"

	"github.com/chatlens/insight-gateway/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

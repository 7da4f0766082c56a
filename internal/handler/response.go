package handler

import (
	"net/http"

	apperrors "github.com/chatlens/insight-gateway/internal/errors"
	"github.com/chatlens/insight-gateway/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func asAppError(err error) (*apperrors.AppError, bool) {
	return apperrors.AsAppError(err)
}

package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/chatlens/insight-gateway/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format. Every caught
// failure produces a well-formed payload of this shape, never partial
// JSON.
type ErrorResponse struct {
	Error string              `json:"error"`
	Code  apperrors.ErrorCode `json:"code,omitempty"`
}

// WriteError writes an AppError as an HTTP response with the
// appropriate status code. Unknown errors become 500 INTERNAL_ERROR.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("Внутренняя ошибка сервера")
	}

	WriteJSON(w, StatusFromError(appErr), ErrorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	})
}

// StatusFromError maps an AppError to an HTTP status. Upstream errors
// forward the backend's status when one was received, mirroring the
// proxy behavior the UI expects.
func StatusFromError(err *apperrors.AppError) int {
	if err.Code == apperrors.ErrCodeUpstream && err.UpstreamStatus != 0 {
		return err.UpstreamStatus
	}
	return statusFromCode(err.Code)
}

func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeMissingRequired, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeUpstream:
		return http.StatusBadGateway
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

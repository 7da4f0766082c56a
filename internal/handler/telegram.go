package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/collector"
	apperrors "github.com/chatlens/insight-gateway/internal/errors"
	"github.com/chatlens/insight-gateway/internal/middleware"
	"github.com/chatlens/insight-gateway/internal/model"
	"github.com/chatlens/insight-gateway/internal/session"
	"github.com/chatlens/insight-gateway/internal/state"
)

// TelegramHandler is the browser-facing surface for account linking,
// contacts and metrics. Every route runs behind the auth-cookie
// middleware, so a token and user key are always on the context.
type TelegramHandler struct {
	machine     *session.Machine
	coordinator *session.Coordinator
	aggregator  SubscribedContactsAPI
	collector   *collector.Client
	states      *state.Manager
}

// SubscribedContactsAPI is the aggregator surface the handler calls.
type SubscribedContactsAPI interface {
	LoadSubscribedContacts(ctx context.Context, token, sessionID string, enrich bool) ([]model.Contact, error)
	LoadContactMetrics(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error)
	ListContacts(ctx context.Context, token, sessionID, search string) ([]model.Contact, error)
}

func NewTelegramHandler(
	machine *session.Machine,
	coordinator *session.Coordinator,
	aggregator SubscribedContactsAPI,
	collectorClient *collector.Client,
	states *state.Manager,
) *TelegramHandler {
	return &TelegramHandler{
		machine:     machine,
		coordinator: coordinator,
		aggregator:  aggregator,
		collector:   collectorClient,
		states:      states,
	}
}

func (h *TelegramHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/verification-code", h.VerificationCode)
	r.Post("/two-factor", h.TwoFactor)
	r.Get("/status/{sessionId}", h.Status)
	r.Get("/sessions", h.Sessions)
	r.Get("/subscribed/{sessionId}", h.Subscribed)
	r.Get("/contacts/{sessionId}", h.Contacts)
	r.Post("/subscribe", h.Subscribe)
	r.Post("/sessions/{sessionId}/interlocutors/{interlocutorId}/unsubscribe", h.Unsubscribe)
	r.Get("/metrics/{sessionId}/{interlocutorId}", h.Metrics)
	r.Get("/recommendations/{sessionId}/{interlocutorId}", h.Recommendations)

	return r
}

func (h *TelegramHandler) container(r *http.Request) (*state.Container, string) {
	token := middleware.GetToken(r.Context())
	c := h.states.Get(r.Context(), middleware.GetUserKey(r.Context()))
	c.UpdateToken(token)
	return c, token
}

type telegramLoginRequest struct {
	Phone     string `json:"phone"`
	SessionID string `json:"sessionId"`
}

// POST /api/telegram/login
func (h *TelegramHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req telegramLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("Не указан телефон"))
		return
	}

	c, token := h.container(r)
	record, err := h.machine.StartLogin(r.Context(), token, c, req.Phone, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SessionResponse{
		SessionID:   record.SessionID,
		Status:      string(record.Status),
		PhoneNumber: record.Phone,
	})
}

type verificationCodeRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

// POST /api/telegram/verification-code
func (h *TelegramHandler) VerificationCode(w http.ResponseWriter, r *http.Request) {
	var req verificationCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("Не указан код или sessionId"))
		return
	}

	c, token := h.container(r)
	status, err := h.machine.SubmitVerificationCode(r.Context(), token, c, req.SessionID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

type twoFactorRequest struct {
	SessionID string `json:"sessionId"`
	Password  string `json:"password"`
}

// POST /api/telegram/two-factor
func (h *TelegramHandler) TwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("Не указан пароль или sessionId"))
		return
	}

	c, token := h.container(r)
	status, err := h.machine.SubmitTwoFactor(r.Context(), token, c, req.SessionID, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// GET /api/telegram/status/{sessionId}
func (h *TelegramHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	c, token := h.container(r)
	resp, err := h.machine.CheckStatus(r.Context(), token, c, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/telegram/sessions
func (h *TelegramHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	_, token := h.container(r)

	sessions, err := h.collector.Sessions(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// GET /api/telegram/subscribed/{sessionId}?loadContacts=true
func (h *TelegramHandler) Subscribed(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, apperrors.MissingRequired("Не указан sessionId"))
		return
	}

	enrich := r.URL.Query().Get("loadContacts") == "true"

	_, token := h.container(r)
	contacts, err := h.aggregator.LoadSubscribedContacts(r.Context(), token, sessionID, enrich)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

// GET /api/telegram/contacts/{sessionId}?search=
func (h *TelegramHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, apperrors.MissingRequired("Не указан sessionId"))
		return
	}

	_, token := h.container(r)
	contacts, err := h.aggregator.ListContacts(r.Context(), token, sessionID, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

type subscribeRequest struct {
	SessionID      string       `json:"sessionId"`
	InterlocutorID model.FlexID `json:"interlocutorId"`
}

// POST /api/telegram/subscribe
func (h *TelegramHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || req.InterlocutorID.IsZero() {
		writeError(w, apperrors.MissingRequired("Не указан sessionId или interlocutorId"))
		return
	}

	_, token := h.container(r)
	if err := h.collector.Subscribe(r.Context(), token, req.SessionID, req.InterlocutorID.String()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// POST /api/telegram/sessions/{sessionId}/interlocutors/{interlocutorId}/unsubscribe
func (h *TelegramHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	interlocutorID := chi.URLParam(r, "interlocutorId")
	if sessionID == "" || interlocutorID == "" {
		writeError(w, apperrors.MissingRequired("Не указан sessionId или interlocutorId"))
		return
	}

	_, token := h.container(r)
	if err := h.collector.Unsubscribe(r.Context(), token, sessionID, interlocutorID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/telegram/metrics/{sessionId}/{interlocutorId}
func (h *TelegramHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	interlocutorID := chi.URLParam(r, "interlocutorId")
	if sessionID == "" || interlocutorID == "" {
		writeError(w, apperrors.MissingRequired("Не указан sessionId или interlocutorId"))
		return
	}

	_, token := h.container(r)
	metrics, err := h.aggregator.LoadContactMetrics(r.Context(), token, sessionID, interlocutorID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

// GET /api/telegram/recommendations/{sessionId}/{interlocutorId}
func (h *TelegramHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	interlocutorID := chi.URLParam(r, "interlocutorId")
	if sessionID == "" || interlocutorID == "" {
		writeError(w, apperrors.MissingRequired("Не указан sessionId или interlocutorId"))
		return
	}

	_, token := h.container(r)
	rec, err := h.collector.Recommendation(r.Context(), token, sessionID, interlocutorID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			// No recommendation yet is an expected outcome, not a hard
			// error.
			log.Debug().Str("sessionId", sessionID).Str("interlocutorId", interlocutorID).Msg("no recommendations found")
			writeJSON(w, http.StatusNotFound, map[string]bool{"notFound": true})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

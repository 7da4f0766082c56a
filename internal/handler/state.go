package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/chatlens/insight-gateway/internal/errors"
	"github.com/chatlens/insight-gateway/internal/middleware"
	"github.com/chatlens/insight-gateway/internal/model"
	"github.com/chatlens/insight-gateway/internal/session"
	"github.com/chatlens/insight-gateway/internal/state"
)

// StateHandler exposes the per-user selection state that used to live
// in browser storage: accounts, the selected account and contact, and
// the loaded contact list.
type StateHandler struct {
	machine     *session.Machine
	coordinator *session.Coordinator
	states      *state.Manager
}

func NewStateHandler(machine *session.Machine, coordinator *session.Coordinator, states *state.Manager) *StateHandler {
	return &StateHandler{
		machine:     machine,
		coordinator: coordinator,
		states:      states,
	}
}

func (h *StateHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Snapshot)
	r.Post("/initialize", h.Initialize)
	r.Post("/select", h.Select)
	r.Post("/select-contact", h.SelectContact)
	r.Post("/refresh", h.Refresh)
	r.Post("/clear", h.Clear)

	return r
}

func (h *StateHandler) container(r *http.Request) (*state.Container, string) {
	token := middleware.GetToken(r.Context())
	c := h.states.Get(r.Context(), middleware.GetUserKey(r.Context()))
	c.UpdateToken(token)
	return c, token
}

// GET /api/telegram/state
func (h *StateHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	c, _ := h.container(r)
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// POST /api/telegram/state/initialize
func (h *StateHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	c, token := h.container(r)
	snapshot := h.coordinator.Initialize(r.Context(), token, c)
	writeJSON(w, http.StatusOK, snapshot)
}

type selectRequest struct {
	Phone     string `json:"phone"`
	SessionID string `json:"sessionId"`
}

// POST /api/telegram/state/select
func (h *StateHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("Не указан телефон или sessionId"))
		return
	}

	c, token := h.container(r)
	if _, err := h.coordinator.Select(r.Context(), token, c, req.Phone, req.SessionID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c.Snapshot())
}

// POST /api/telegram/state/select-contact
func (h *StateHandler) SelectContact(w http.ResponseWriter, r *http.Request) {
	var contact model.Contact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		writeError(w, apperrors.MissingRequired("Не указан контакт"))
		return
	}

	c, _ := h.container(r)
	h.coordinator.SelectContact(r.Context(), c, contact)

	// The UI navigates to the dashboard after selection.
	writeJSON(w, http.StatusOK, map[string]string{"redirect": "/dashboard"})
}

// POST /api/telegram/state/refresh
func (h *StateHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, token := h.container(r)
	h.machine.RefreshAll(r.Context(), token, c)
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// POST /api/telegram/state/clear
func (h *StateHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, _ := h.container(r)
	h.coordinator.Clear(r.Context(), c)
	writeJSON(w, http.StatusOK, c.Snapshot())
}

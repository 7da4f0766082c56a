package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/middleware"
	"github.com/chatlens/insight-gateway/internal/sse"
)

// EventsHandler streams state-change notifications to the browser so
// it can re-render from a fresh snapshot instead of polling.
type EventsHandler struct {
	broker *sse.Broker
}

func NewEventsHandler(broker *sse.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// GET /api/telegram/state/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userKey := middleware.GetUserKey(r.Context())
	if userKey == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Не авторизован"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(userKey)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("userKey", userKey).Msg("sse connection established")

	h.sendEvent(w, flusher, sse.Event{Type: "connected"})

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done:
			return
		case event := <-client.Events:
			h.sendEvent(w, flusher, event)
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) {
	fmt.Fprintf(w, "event: %s\n", event.Type)
	if len(event.Data) > 0 {
		fmt.Fprintf(w, "data: %s\n\n", event.Data)
	} else {
		fmt.Fprint(w, "data: {}\n\n")
	}
	flusher.Flush()
}

// Package audit records session-lifecycle events to Postgres. The
// trail is best-effort supporting infrastructure: a failed write is
// logged and the request proceeds.
package audit

import (
	"context"
	"embed"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

type EventType string

const (
	EventLoginStarted       EventType = "login_started"
	EventCodeSubmitted      EventType = "code_submitted"
	EventTwoFactorSubmitted EventType = "two_factor_submitted"
	EventStatusChanged      EventType = "status_changed"
	EventSessionSuperseded  EventType = "session_superseded"
)

type Event struct {
	Type      EventType
	UserID    string
	SessionID string
	Phone     string
	Status    string
	Detail    string
}

// Recorder writes audit events. A nil-DB recorder drops them silently,
// which is how the gateway runs when DATABASE_URL is unset.
type Recorder struct {
	db *database.DB
}

func NewRecorder(db *database.DB) *Recorder {
	return &Recorder{db: db}
}

// Nop returns a recorder that discards everything.
func Nop() *Recorder {
	return &Recorder{}
}

// Migrate brings the audit schema up to date.
func Migrate(db *database.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db.DB.DB, "migrations")
}

const writeTimeout = 3 * time.Second

// Record persists one event. Failures never propagate to the caller.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r.db == nil {
		return
	}

	// Detach from the request context so a cancelled request still
	// leaves its trail.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_, err := r.db.ExecContext(writeCtx, `
		INSERT INTO audit_events (id, user_id, session_id, phone, event_type, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), event.UserID, event.SessionID, event.Phone, string(event.Type), event.Status, event.Detail)
	if err != nil {
		log.Error().
			Err(err).
			Str("eventType", string(event.Type)).
			Str("userId", event.UserID).
			Msg("failed to write audit event")
	}
}

package session

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/enrich"
	apperrors "github.com/chatlens/insight-gateway/internal/errors"
	"github.com/chatlens/insight-gateway/internal/model"
	"github.com/chatlens/insight-gateway/internal/state"
)

// Coordinator maintains the current-account and current-contact
// pointers, re-validates them against the session records, and triggers
// the dependent contact reload when the selection changes.
type Coordinator struct {
	machine    *Machine
	aggregator *enrich.Aggregator
}

func NewCoordinator(machine *Machine, aggregator *enrich.Aggregator) *Coordinator {
	return &Coordinator{machine: machine, aggregator: aggregator}
}

// Initialize merges the Collector's session list into the store,
// refreshes every status, and auto-selects the first active session
// when nothing is selected. A selection restored from the snapshot that
// turns out inactive stays inert until the next refresh; Initialize
// does not auto-load contacts.
func (co *Coordinator) Initialize(ctx context.Context, token string, c *state.Container) state.Snapshot {
	remote, err := co.machine.collector.Sessions(ctx, token)
	if err != nil {
		// Session discovery is best-effort: locally known accounts
		// still get their statuses refreshed below.
		log.Error().Err(err).Str("userId", c.UserID()).Msg("failed to load collector sessions")
	} else {
		merged := make([]model.Session, 0, len(remote))
		for _, r := range remote {
			merged = append(merged, model.Session{
				Phone:     r.PhoneNumber,
				SessionID: r.SessionID,
				Status:    model.NormalizeStatus(r.Status),
			})
		}
		c.Merge(ctx, merged)
	}

	co.machine.RefreshAll(ctx, token, c)

	if _, ok := c.Selected(); !ok {
		c.SelectFirst(ctx, func(s model.Session) bool { return s.IsActive })
	}
	return c.Snapshot()
}

// Select marks the session registered for phone as selected and active
// without re-validating against the backend, then reloads its contacts.
// A failed contact load clears the contact list instead of failing the
// selection; the account switch itself always sticks.
func (co *Coordinator) Select(ctx context.Context, token string, c *state.Container, phone, sessionID string) (model.Session, error) {
	if phone == "" || sessionID == "" {
		return model.Session{}, apperrors.MissingRequired("Не указан телефон или sessionId")
	}

	session, ok := c.Select(ctx, phone, sessionID)
	if !ok {
		return model.Session{}, apperrors.NotFound("Аккаунт не найден")
	}

	contacts, err := co.aggregator.LoadSubscribedContacts(ctx, token, session.SessionID, true)
	if err != nil {
		log.Error().
			Err(err).
			Str("sessionId", session.SessionID).
			Msg("failed to load contacts after selection")
		c.Clear(ctx)
		return session, nil
	}
	c.SetContacts(ctx, contacts)
	return session, nil
}

// SelectContact sets the selected-contact pointer; the caller handles
// navigation to the detail view.
func (co *Coordinator) SelectContact(ctx context.Context, c *state.Container, contact model.Contact) {
	c.SelectContact(ctx, contact)
}

// Clear empties the contact list and selected contact.
func (co *Coordinator) Clear(ctx context.Context, c *state.Container) {
	c.Clear(ctx)
}

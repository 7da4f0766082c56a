// Package state owns the per-user session records and selection
// pointers. The container is an explicit state object with
// subscribe/notify semantics, not ambient globals: mutations happen
// under its lock, observers hear about them through the notifier, and
// persistence is a serialize/deserialize boundary the container invokes
// itself.
package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/model"
	"github.com/chatlens/insight-gateway/internal/sse"
)

// Store is the persistence boundary for a user's snapshot. Absent
// snapshots load as nil data without error.
type Store interface {
	Load(ctx context.Context, userID string) ([]byte, error)
	Save(ctx context.Context, userID string, data []byte) error
}

// Notifier delivers state-change events to subscribers.
type Notifier interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

// Pointer identifies the selected session inside the account list.
type Pointer struct {
	Phone     string `json:"phone"`
	SessionID string `json:"sessionId"`
}

// Snapshot is the read view handed to the UI. Slices are copies; the
// container keeps exclusive ownership of its records.
type Snapshot struct {
	Accounts        []model.Session `json:"accounts"`
	Selected        *model.Session  `json:"selected"`
	SelectedContact *model.Contact  `json:"selectedContact"`
	Contacts        []model.Contact `json:"contacts"`
}

// persisted is what crosses the serialize boundary. The contact list is
// rebuilt from the Collector on demand and deliberately not persisted.
type persisted struct {
	Accounts        []model.Session `json:"accounts"`
	Selected        *Pointer        `json:"selected"`
	SelectedContact *model.Contact  `json:"selectedContact"`
}

type Container struct {
	userID   string
	store    Store
	notifier Notifier

	mu              sync.Mutex
	accounts        []model.Session
	selected        *Pointer
	selectedContact *model.Contact
	contacts        []model.Contact
	token           string
}

func NewContainer(ctx context.Context, userID string, store Store, notifier Notifier) *Container {
	c := &Container{
		userID:   userID,
		store:    store,
		notifier: notifier,
	}
	c.restore(ctx)
	return c
}

func (c *Container) UserID() string {
	return c.userID
}

// UpdateToken remembers the caller's bearer token so the background
// refresh job can poll the Collector on the user's behalf between
// requests. Tokens are never persisted.
func (c *Container) UpdateToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Container) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Upsert records a session, replacing any existing record for the same
// phone. A superseded record is replaced whole, never merged. The first
// account a user links becomes the selection when nothing is selected.
func (c *Container) Upsert(ctx context.Context, s model.Session) {
	s.IsActive = s.Status == model.StatusSuccess

	c.mu.Lock()
	replaced := false
	for i := range c.accounts {
		if c.accounts[i].Phone == s.Phone {
			c.accounts[i] = s
			replaced = true
			break
		}
	}
	if !replaced {
		c.accounts = append([]model.Session{s}, c.accounts...)
	}
	if c.selected == nil {
		c.selected = &Pointer{Phone: s.Phone, SessionID: s.SessionID}
	}
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "accounts_updated")
}

// Merge adds Collector-known sessions the container has not seen yet,
// matching by session id. Known records keep their local state.
func (c *Container) Merge(ctx context.Context, remote []model.Session) {
	c.mu.Lock()
	added := false
	for _, r := range remote {
		if r.Phone == "" || r.SessionID == "" {
			continue
		}
		known := false
		for i := range c.accounts {
			if c.accounts[i].SessionID == r.SessionID {
				known = true
				break
			}
		}
		if !known {
			r.IsActive = r.Status == model.StatusSuccess
			c.accounts = append(c.accounts, r)
			added = true
		}
	}
	c.mu.Unlock()

	if added {
		c.persist(ctx)
		c.notify(ctx, "accounts_updated")
	}
}

// UpdateStatus applies one status outcome to the record with the given
// session id. The isActive flag is always recomputed from the status.
func (c *Container) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus, lastError *string) {
	c.mu.Lock()
	for i := range c.accounts {
		if c.accounts[i].SessionID == sessionID {
			c.accounts[i].Status = status
			c.accounts[i].IsActive = status == model.StatusSuccess
			c.accounts[i].LastError = lastError
			break
		}
	}
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "accounts_updated")
}

// ApplyStatuses reconciles a whole refresh batch in one step, then
// reports whether the selected session is still active.
func (c *Container) ApplyStatuses(ctx context.Context, results map[string]StatusOutcome) (selectedActive bool, hadSelection bool) {
	c.mu.Lock()
	for i := range c.accounts {
		if outcome, ok := results[c.accounts[i].SessionID]; ok {
			c.accounts[i].Status = outcome.Status
			c.accounts[i].IsActive = outcome.Status == model.StatusSuccess
			c.accounts[i].LastError = outcome.LastError
		}
	}
	hadSelection = c.selected != nil
	if hadSelection {
		for i := range c.accounts {
			if c.accounts[i].SessionID == c.selected.SessionID {
				selectedActive = c.accounts[i].IsActive
				break
			}
		}
	}
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "accounts_updated")
	return selectedActive, hadSelection
}

// StatusOutcome is one session's result inside a refresh batch.
type StatusOutcome struct {
	Status    model.SessionStatus
	LastError *string
}

// Sessions returns a copy of the account list in display order.
func (c *Container) Sessions() []model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Session, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// Select points the selection at the session registered for phone. It
// is a local lookup: the backend is not consulted, and the record is
// marked selected and active as-is.
func (c *Container) Select(ctx context.Context, phone, sessionID string) (model.Session, bool) {
	c.mu.Lock()
	var found *model.Session
	for i := range c.accounts {
		if c.accounts[i].Phone == phone {
			c.accounts[i].IsActive = true
			c.accounts[i].Status = model.StatusSuccess
			found = &c.accounts[i]
			break
		}
	}
	if found == nil {
		c.mu.Unlock()
		return model.Session{}, false
	}
	c.selected = &Pointer{Phone: found.Phone, SessionID: found.SessionID}
	session := *found
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "selection_changed")
	return session, true
}

// SelectFirst moves the selection to the first account passing keep,
// or clears selection and contacts when none does.
func (c *Container) SelectFirst(ctx context.Context, keep func(model.Session) bool) (model.Session, bool) {
	c.mu.Lock()
	var found *model.Session
	for i := range c.accounts {
		if keep(c.accounts[i]) {
			found = &c.accounts[i]
			break
		}
	}
	if found == nil {
		c.selected = nil
		c.contacts = nil
		c.selectedContact = nil
		c.mu.Unlock()
		c.persist(ctx)
		c.notify(ctx, "selection_changed")
		return model.Session{}, false
	}
	c.selected = &Pointer{Phone: found.Phone, SessionID: found.SessionID}
	session := *found
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "selection_changed")
	return session, true
}

// Selected resolves the selection pointer against the account list.
func (c *Container) Selected() (model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return model.Session{}, false
	}
	for i := range c.accounts {
		if c.accounts[i].SessionID == c.selected.SessionID {
			return c.accounts[i], true
		}
	}
	return model.Session{}, false
}

// SetContacts replaces the whole contact set for the current selection.
// There is no partial patching; a later load replaces everything.
func (c *Container) SetContacts(ctx context.Context, contacts []model.Contact) {
	c.mu.Lock()
	c.contacts = make([]model.Contact, len(contacts))
	copy(c.contacts, contacts)
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "contacts_updated")
}

// SelectContact sets the selected-contact pointer. Contacts still
// carrying the synthesized placeholder name are flagged for later
// enrichment; no retry is scheduled here.
func (c *Container) SelectContact(ctx context.Context, contact model.Contact) {
	if contact.IsPlaceholderNamed() {
		log.Info().
			Str("userId", c.userID).
			Str("interlocutorId", contact.InterlocutorID.String()).
			Msg("selected contact has placeholder name, needs enrichment")
	}

	c.mu.Lock()
	c.selectedContact = &contact
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "selection_changed")
}

// Clear empties the contact list and selected contact, used on session
// switch or removal.
func (c *Container) Clear(ctx context.Context) {
	c.mu.Lock()
	c.contacts = nil
	c.selectedContact = nil
	c.mu.Unlock()

	c.persist(ctx)
	c.notify(ctx, "contacts_updated")
}

func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Accounts: make([]model.Session, len(c.accounts)),
		Contacts: make([]model.Contact, len(c.contacts)),
	}
	copy(snap.Accounts, c.accounts)
	copy(snap.Contacts, c.contacts)

	if c.selected != nil {
		for i := range c.accounts {
			if c.accounts[i].SessionID == c.selected.SessionID {
				session := c.accounts[i]
				snap.Selected = &session
				break
			}
		}
	}
	if c.selectedContact != nil {
		contact := *c.selectedContact
		snap.SelectedContact = &contact
	}
	return snap
}

// restore pulls the persisted snapshot across the deserialize boundary.
// A corrupt or missing snapshot starts the container empty.
func (c *Container) restore(ctx context.Context) {
	if c.store == nil {
		return
	}
	data, err := c.store.Load(ctx, c.userID)
	if err != nil {
		log.Error().Err(err).Str("userId", c.userID).Msg("failed to load state snapshot")
		return
	}
	if data == nil {
		return
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("userId", c.userID).Msg("corrupt state snapshot, starting empty")
		return
	}

	c.mu.Lock()
	c.accounts = p.Accounts
	c.selected = p.Selected
	c.selectedContact = p.SelectedContact
	c.mu.Unlock()
}

func (c *Container) persist(ctx context.Context) {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	p := persisted{
		Accounts:        c.accounts,
		Selected:        c.selected,
		SelectedContact: c.selectedContact,
	}
	c.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		log.Error().Err(err).Str("userId", c.userID).Msg("failed to marshal state snapshot")
		return
	}
	if err := c.store.Save(ctx, c.userID, data); err != nil {
		log.Error().Err(err).Str("userId", c.userID).Msg("failed to save state snapshot")
	}
}

func (c *Container) notify(ctx context.Context, eventType string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, c.userID, sse.Event{Type: eventType}); err != nil {
		log.Warn().Err(err).Str("userId", c.userID).Str("event", eventType).Msg("failed to publish state event")
	}
}

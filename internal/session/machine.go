// Package session drives account sessions through the multi-step login
// protocol. Transitions are server-driven: the machine is a trusting
// relay that mirrors whatever status the Collector reports, because the
// actual step logic (SMS delivery, 2FA validity) lives in a service the
// gateway does not own. That is a contract, not a bug; the only local
// defense is mapping unrecognized status values to Failed.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/chatlens/insight-gateway/internal/audit"
	apperrors "github.com/chatlens/insight-gateway/internal/errors"
	"github.com/chatlens/insight-gateway/internal/model"
	"github.com/chatlens/insight-gateway/internal/state"
)

// CollectorAPI is the slice of the Collector client the machine needs.
type CollectorAPI interface {
	Login(ctx context.Context, token, phone, sessionID string) (*model.SessionResponse, error)
	SubmitVerificationCode(ctx context.Context, token, sessionID, code string) (*model.SessionResponse, error)
	SubmitTwoFactor(ctx context.Context, token, sessionID, password string) (*model.SessionResponse, error)
	Status(ctx context.Context, token, sessionID string) (*model.SessionResponse, error)
	Sessions(ctx context.Context, token string) ([]model.SessionResponse, error)
}

type Machine struct {
	collector CollectorAPI
	audit     *audit.Recorder
}

func NewMachine(collector CollectorAPI, auditRecorder *audit.Recorder) *Machine {
	if auditRecorder == nil {
		auditRecorder = audit.Nop()
	}
	return &Machine{collector: collector, audit: auditRecorder}
}

// StartLogin begins (or resumes, when sessionID is set) a phone login
// and records the resulting session. Re-login for a known phone
// replaces the record whole; the superseded session id is audited.
func (m *Machine) StartLogin(ctx context.Context, token string, c *state.Container, phone, sessionID string) (model.Session, error) {
	if strings.TrimSpace(phone) == "" {
		return model.Session{}, apperrors.MissingRequired("Не указан телефон")
	}

	resp, err := m.collector.Login(ctx, token, phone, sessionID)
	if err != nil {
		return model.Session{}, err
	}

	for _, existing := range c.Sessions() {
		if existing.Phone == phone && existing.SessionID != resp.SessionID {
			m.audit.Record(ctx, audit.Event{
				Type:      audit.EventSessionSuperseded,
				UserID:    c.UserID(),
				SessionID: existing.SessionID,
				Phone:     phone,
				Detail:    "replaced by " + resp.SessionID,
			})
		}
	}

	record := model.Session{
		Phone:     phone,
		SessionID: resp.SessionID,
		Status:    statusFromResponse(resp),
		LastError: errorFromResponse(resp),
	}
	if resp.PhoneNumber != "" {
		record.Phone = resp.PhoneNumber
	}
	c.Upsert(ctx, record)

	m.audit.Record(ctx, audit.Event{
		Type:      audit.EventLoginStarted,
		UserID:    c.UserID(),
		SessionID: record.SessionID,
		Phone:     record.Phone,
		Status:    string(record.Status),
	})

	record.IsActive = record.Status == model.StatusSuccess
	return record, nil
}

// SubmitVerificationCode forwards the SMS code. The machine does not
// enforce that the session is in VerificationCodeRequired; the
// Collector is the source of truth for transition legality.
func (m *Machine) SubmitVerificationCode(ctx context.Context, token string, c *state.Container, sessionID, code string) (model.SessionStatus, error) {
	if sessionID == "" || code == "" {
		return "", apperrors.MissingRequired("Не указан код или sessionId")
	}

	resp, err := m.collector.SubmitVerificationCode(ctx, token, sessionID, code)
	if err != nil {
		return "", err
	}

	status := statusFromResponse(resp)
	c.UpdateStatus(ctx, sessionID, status, errorFromResponse(resp))

	m.audit.Record(ctx, audit.Event{
		Type:      audit.EventCodeSubmitted,
		UserID:    c.UserID(),
		SessionID: sessionID,
		Status:    string(status),
	})
	return status, nil
}

// SubmitTwoFactor forwards the cloud password, analogous to
// SubmitVerificationCode.
func (m *Machine) SubmitTwoFactor(ctx context.Context, token string, c *state.Container, sessionID, password string) (model.SessionStatus, error) {
	if sessionID == "" || password == "" {
		return "", apperrors.MissingRequired("Не указан пароль или sessionId")
	}

	resp, err := m.collector.SubmitTwoFactor(ctx, token, sessionID, password)
	if err != nil {
		return "", err
	}

	status := statusFromResponse(resp)
	c.UpdateStatus(ctx, sessionID, status, errorFromResponse(resp))

	m.audit.Record(ctx, audit.Event{
		Type:      audit.EventTwoFactorSubmitted,
		UserID:    c.UserID(),
		SessionID: sessionID,
		Status:    string(status),
	})
	return status, nil
}

// CheckStatus is an idempotent poll: it refreshes the local record and
// the derived isActive flag, never mutating the Collector-side session.
func (m *Machine) CheckStatus(ctx context.Context, token string, c *state.Container, sessionID string) (*model.SessionResponse, error) {
	if sessionID == "" {
		return nil, apperrors.MissingRequired("Не указан sessionId")
	}

	resp, err := m.collector.Status(ctx, token, sessionID)
	if err != nil {
		return nil, err
	}

	status := statusFromResponse(resp)
	c.UpdateStatus(ctx, sessionID, status, errorFromResponse(resp))

	normalized := *resp
	normalized.Status = string(status)
	return &normalized, nil
}

// RefreshAll polls every known session concurrently and reconciles the
// store in one step. One session's check failing yields Failed for that
// session only; the batch always produces exactly one outcome per
// session. When the refresh leaves the selected session inactive, the
// selection moves to the first active session or clears.
func (m *Machine) RefreshAll(ctx context.Context, token string, c *state.Container) map[string]state.StatusOutcome {
	sessions := c.Sessions()
	if len(sessions) == 0 {
		return map[string]state.StatusOutcome{}
	}

	results := make(map[string]state.StatusOutcome, len(sessions))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, s := range sessions {
		wg.Add(1)
		go func(s model.Session) {
			defer wg.Done()

			outcome := m.checkOne(ctx, token, s.SessionID)

			mu.Lock()
			results[s.SessionID] = outcome
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	selectedActive, hadSelection := c.ApplyStatuses(ctx, results)
	if hadSelection && !selectedActive {
		c.SelectFirst(ctx, func(s model.Session) bool { return s.IsActive })
	}

	for id, outcome := range results {
		m.audit.Record(ctx, audit.Event{
			Type:      audit.EventStatusChanged,
			UserID:    c.UserID(),
			SessionID: id,
			Status:    string(outcome.Status),
		})
	}
	return results
}

func (m *Machine) checkOne(ctx context.Context, token, sessionID string) state.StatusOutcome {
	resp, err := m.collector.Status(ctx, token, sessionID)
	if err != nil {
		msg := err.Error()
		return state.StatusOutcome{Status: model.StatusFailed, LastError: &msg}
	}
	return state.StatusOutcome{
		Status:    statusFromResponse(resp),
		LastError: errorFromResponse(resp),
	}
}

// statusFromResponse normalizes the Collector's reported status. An
// empty status means no further step is required yet.
func statusFromResponse(resp *model.SessionResponse) model.SessionStatus {
	if resp.Status == "" {
		return model.StatusPending
	}
	return model.NormalizeStatus(resp.Status)
}

func errorFromResponse(resp *model.SessionResponse) *string {
	if resp.Error == "" {
		return nil
	}
	e := resp.Error
	return &e
}

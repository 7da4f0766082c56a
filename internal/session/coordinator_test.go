package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens/insight-gateway/internal/enrich"
	apperrors "github.com/chatlens/insight-gateway/internal/errors"
	"github.com/chatlens/insight-gateway/internal/model"
)

// fullCollector adds the enrichment endpoints on top of the session
// mock so one fake can feed both the machine and the aggregator.
type fullCollector struct {
	mockCollector

	subscriptionsFunc func(ctx context.Context, token, sessionID string) ([]model.Subscription, error)
	contactsFunc      func(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error)
}

func (f *fullCollector) Subscriptions(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
	if f.subscriptionsFunc != nil {
		return f.subscriptionsFunc(ctx, token, sessionID)
	}
	return nil, nil
}

func (f *fullCollector) Contacts(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
	if f.contactsFunc != nil {
		return f.contactsFunc(ctx, token, sessionID, search)
	}
	return nil, nil
}

func (f *fullCollector) ChatMetrics(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error) {
	return map[string]any{}, nil
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("merges collector sessions and auto-selects first active", func(t *testing.T) {
		collector := &fullCollector{
			mockCollector: mockCollector{
				sessionsFunc: func(ctx context.Context, token string) ([]model.SessionResponse, error) {
					return []model.SessionResponse{
						{SessionID: "s1", PhoneNumber: "+7900", Status: "Expired"},
						{SessionID: "s2", PhoneNumber: "+7901", Status: "Success"},
					}, nil
				},
				statusFunc: func(ctx context.Context, token, sessionID string) (*model.SessionResponse, error) {
					if sessionID == "s2" {
						return &model.SessionResponse{SessionID: sessionID, Status: "Success"}, nil
					}
					return &model.SessionResponse{SessionID: sessionID, Status: "Expired"}, nil
				},
			},
		}
		co := NewCoordinator(NewMachine(collector, nil), enrich.NewAggregator(collector))
		c := newTestContainer(t)

		snap := co.Initialize(ctx, "tok", c)

		require.Len(t, snap.Accounts, 2)
		require.NotNil(t, snap.Selected)
		assert.Equal(t, "s2", snap.Selected.SessionID)
		assert.True(t, snap.Selected.IsActive)
	})

	t.Run("session discovery failure still refreshes local records", func(t *testing.T) {
		collector := &fullCollector{
			mockCollector: mockCollector{
				loginFunc: func(ctx context.Context, token, phone, sessionID string) (*model.SessionResponse, error) {
					return &model.SessionResponse{SessionID: "s1", Status: "Pending"}, nil
				},
				sessionsFunc: func(ctx context.Context, token string) ([]model.SessionResponse, error) {
					return nil, errors.New("collector down")
				},
				statusFunc: func(ctx context.Context, token, sessionID string) (*model.SessionResponse, error) {
					return &model.SessionResponse{SessionID: sessionID, Status: "Success"}, nil
				},
			},
		}
		machine := NewMachine(collector, nil)
		co := NewCoordinator(machine, enrich.NewAggregator(collector))
		c := newTestContainer(t)
		_, err := machine.StartLogin(ctx, "tok", c, "+7900", "")
		require.NoError(t, err)

		snap := co.Initialize(ctx, "tok", c)

		require.Len(t, snap.Accounts, 1)
		assert.True(t, snap.Accounts[0].IsActive)
	})

	t.Run("no accounts yields empty snapshot", func(t *testing.T) {
		collector := &fullCollector{}
		collector.sessionsFunc = func(ctx context.Context, token string) ([]model.SessionResponse, error) {
			return nil, nil
		}
		co := NewCoordinator(NewMachine(collector, nil), enrich.NewAggregator(collector))

		snap := co.Initialize(ctx, "tok", newTestContainer(t))
		assert.Empty(t, snap.Accounts)
		assert.Nil(t, snap.Selected)
	})
}

func TestCoordinatorSelect(t *testing.T) {
	ctx := context.Background()

	newSelectFixture := func(contactsErr error) *Coordinator {
		collector := &fullCollector{
			mockCollector: mockCollector{
				loginFunc: func(ctx context.Context, token, phone, sessionID string) (*model.SessionResponse, error) {
					return &model.SessionResponse{SessionID: "s-" + phone, Status: "Success"}, nil
				},
			},
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				if contactsErr != nil {
					return nil, contactsErr
				}
				return []model.Subscription{
					{ID: model.FlexIDFromInt(1), InterlocutorID: model.NewFlexID("7"), ContactName: "Иван Петров"},
				}, nil
			},
		}
		return NewCoordinator(NewMachine(collector, nil), enrich.NewAggregator(collector))
	}

	t.Run("missing fields rejected", func(t *testing.T) {
		co := newSelectFixture(nil)
		_, err := co.Select(ctx, "tok", newTestContainer(t), "", "s1")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMissingRequired))
	})

	t.Run("unknown account not found", func(t *testing.T) {
		co := newSelectFixture(nil)
		_, err := co.Select(ctx, "tok", newTestContainer(t), "+7999", "s1")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("selection loads contacts", func(t *testing.T) {
		co := newSelectFixture(nil)
		c := newTestContainer(t)
		_, err := co.machine.StartLogin(ctx, "tok", c, "+7900", "")
		require.NoError(t, err)

		session, err := co.Select(ctx, "tok", c, "+7900", "s-+7900")
		require.NoError(t, err)
		assert.True(t, session.IsActive)

		snap := c.Snapshot()
		require.Len(t, snap.Contacts, 1)
		assert.Equal(t, "Иван", snap.Contacts[0].FirstName)
	})

	t.Run("contact load failure clears instead of failing", func(t *testing.T) {
		co := newSelectFixture(errors.New("collector down"))
		c := newTestContainer(t)
		_, err := co.machine.StartLogin(ctx, "tok", c, "+7900", "")
		require.NoError(t, err)
		c.SetContacts(ctx, []model.Contact{{ID: model.FlexIDFromInt(1)}})

		_, err = co.Select(ctx, "tok", c, "+7900", "s-+7900")
		require.NoError(t, err)

		snap := c.Snapshot()
		assert.Empty(t, snap.Contacts)
	})
}

func TestCoordinatorSelectContact(t *testing.T) {
	ctx := context.Background()
	collector := &fullCollector{}
	co := NewCoordinator(NewMachine(collector, nil), enrich.NewAggregator(collector))
	c := newTestContainer(t)

	contact := model.Contact{ID: model.FlexIDFromInt(1), FirstName: "Иван", InterlocutorID: model.NewFlexID("7")}
	co.SelectContact(ctx, c, contact)

	snap := c.Snapshot()
	require.NotNil(t, snap.SelectedContact)
	assert.Equal(t, "Иван", snap.SelectedContact.FirstName)

	co.Clear(ctx, c)
	snap = c.Snapshot()
	assert.Nil(t, snap.SelectedContact)
}

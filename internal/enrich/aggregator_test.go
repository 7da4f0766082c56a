package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens/insight-gateway/internal/model"
)

type mockCollector struct {
	subscriptionsFunc func(ctx context.Context, token, sessionID string) ([]model.Subscription, error)
	contactsFunc      func(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error)
	chatMetricsFunc   func(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error)
}

func (m *mockCollector) Subscriptions(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
	if m.subscriptionsFunc != nil {
		return m.subscriptionsFunc(ctx, token, sessionID)
	}
	return nil, nil
}

func (m *mockCollector) Contacts(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
	if m.contactsFunc != nil {
		return m.contactsFunc(ctx, token, sessionID, search)
	}
	return nil, nil
}

func (m *mockCollector) ChatMetrics(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error) {
	if m.chatMetricsFunc != nil {
		return m.chatMetricsFunc(ctx, token, sessionID, interlocutorID)
	}
	return map[string]any{}, nil
}

func strptr(s string) *string { return &s }

func TestResolveName(t *testing.T) {
	tests := []struct {
		name     string
		sub      model.Subscription
		contacts []model.RawContact
		want     ResolvedName
	}{
		{
			name: "raw contact matched by coerced id wins",
			sub: model.Subscription{
				ID:             model.FlexIDFromInt(2),
				InterlocutorID: model.FlexIDFromInt(9),
				ContactName:    "Иван Петров",
			},
			contacts: []model.RawContact{
				{ID: model.NewFlexID("9"), FirstName: "Анна", LastName: strptr("К")},
			},
			want: ResolvedName{Source: SourceContact, First: "Анна", Last: strptr("К")},
		},
		{
			name: "subscription name splits on first space",
			sub: model.Subscription{
				InterlocutorID: model.NewFlexID("7"),
				ContactName:    "Иван Петров",
			},
			want: ResolvedName{Source: SourceSubscriptionName, First: "Иван", Last: strptr("Петров")},
		},
		{
			name: "single word name has no last name",
			sub: model.Subscription{
				InterlocutorID: model.NewFlexID("7"),
				ContactName:    "Иван",
			},
			want: ResolvedName{Source: SourceSubscriptionName, First: "Иван"},
		},
		{
			name: "remaining words stay together in last name",
			sub: model.Subscription{
				InterlocutorID: model.NewFlexID("7"),
				ContactName:    "Анна Мария Козлова",
			},
			want: ResolvedName{Source: SourceSubscriptionName, First: "Анна", Last: strptr("Мария Козлова")},
		},
		{
			name: "no data synthesizes placeholder",
			sub: model.Subscription{
				InterlocutorID: model.NewFlexID("7"),
			},
			want: ResolvedName{Source: SourcePlaceholder, First: "Контакт #7"},
		},
		{
			name: "non-matching contact falls through to subscription name",
			sub: model.Subscription{
				InterlocutorID: model.NewFlexID("7"),
				ContactName:    "Иван Петров",
			},
			contacts: []model.RawContact{
				{ID: model.NewFlexID("8"), FirstName: "Олег"},
			},
			want: ResolvedName{Source: SourceSubscriptionName, First: "Иван", Last: strptr("Петров")},
		},
		{
			name: "non-numeric ids never match",
			sub: model.Subscription{
				InterlocutorID: model.NewFlexID("abc"),
			},
			contacts: []model.RawContact{
				{ID: model.NewFlexID("abc"), FirstName: "Олег"},
			},
			want: ResolvedName{Source: SourcePlaceholder, First: "Контакт #abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveName(tt.sub, tt.contacts)
			assert.Equal(t, tt.want.Source, got.Source)
			assert.Equal(t, tt.want.First, got.First)
			if tt.want.Last == nil {
				assert.Nil(t, got.Last)
			} else {
				require.NotNil(t, got.Last)
				assert.Equal(t, *tt.want.Last, *got.Last)
			}
		})
	}
}

func TestLoadSubscribedContacts(t *testing.T) {
	ctx := context.Background()

	t.Run("one contact per subscription in order", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				return []model.Subscription{
					{ID: model.FlexIDFromInt(1), InterlocutorID: model.NewFlexID("7"), ContactName: "Иван Петров"},
					{ID: model.FlexIDFromInt(2), InterlocutorID: model.FlexIDFromInt(9)},
				}, nil
			},
			contactsFunc: func(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
				return []model.RawContact{
					{ID: model.FlexIDFromInt(9), FirstName: "Анна", LastName: strptr("К")},
				}, nil
			},
		})

		contacts, err := agg.LoadSubscribedContacts(ctx, "tok", "s1", true)
		require.NoError(t, err)
		require.Len(t, contacts, 2)

		assert.Equal(t, "Иван", contacts[0].FirstName)
		require.NotNil(t, contacts[0].LastName)
		assert.Equal(t, "Петров", *contacts[0].LastName)
		assert.True(t, contacts[0].InterlocutorID.Equal(model.FlexIDFromInt(7)))

		assert.Equal(t, "Анна", contacts[1].FirstName)
		require.NotNil(t, contacts[1].LastName)
		assert.Equal(t, "К", *contacts[1].LastName)
	})

	t.Run("contact fetch failure degrades names but still delivers", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				return []model.Subscription{
					{ID: model.FlexIDFromInt(1), InterlocutorID: model.NewFlexID("7")},
				}, nil
			},
			contactsFunc: func(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
				return nil, errors.New("collector down")
			},
		})

		contacts, err := agg.LoadSubscribedContacts(ctx, "tok", "s1", true)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "Контакт #7", contacts[0].FirstName)
		assert.Nil(t, contacts[0].LastName)
	})

	t.Run("subscription fetch failure is fatal", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				return nil, errors.New("collector down")
			},
		})

		_, err := agg.LoadSubscribedContacts(ctx, "tok", "s1", true)
		assert.Error(t, err)
	})

	t.Run("enrichment disabled skips contact fetch", func(t *testing.T) {
		contactsCalled := false
		agg := NewAggregator(&mockCollector{
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				return []model.Subscription{
					{ID: model.FlexIDFromInt(1), InterlocutorID: model.NewFlexID("7"), ContactName: "Иван"},
				}, nil
			},
			contactsFunc: func(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
				contactsCalled = true
				return nil, nil
			},
		})

		contacts, err := agg.LoadSubscribedContacts(ctx, "tok", "s1", false)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "Иван", contacts[0].FirstName)
		assert.False(t, contactsCalled)
	})

	t.Run("duplicate interlocutor ids propagate as-is", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				return []model.Subscription{
					{ID: model.FlexIDFromInt(1), InterlocutorID: model.NewFlexID("7")},
					{ID: model.FlexIDFromInt(2), InterlocutorID: model.NewFlexID("7")},
				}, nil
			},
		})

		contacts, err := agg.LoadSubscribedContacts(ctx, "tok", "s1", false)
		require.NoError(t, err)
		assert.Len(t, contacts, 2)
	})

	t.Run("empty subscription list yields empty slice", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{})
		contacts, err := agg.LoadSubscribedContacts(ctx, "tok", "s1", true)
		require.NoError(t, err)
		assert.NotNil(t, contacts)
		assert.Empty(t, contacts)
	})
}

func TestLoadContactMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches resolved contact info", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			chatMetricsFunc: func(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error) {
				return map[string]any{"messageCount": 12}, nil
			},
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				return []model.Subscription{
					{ID: model.FlexIDFromInt(3), InterlocutorID: model.NewFlexID("7"), ContactName: "Иван Петров"},
				}, nil
			},
		})

		metrics, err := agg.LoadContactMetrics(ctx, "tok", "s1", "7")
		require.NoError(t, err)
		assert.Equal(t, 12, metrics["messageCount"])

		info, ok := metrics["contactInfo"].(model.Contact)
		require.True(t, ok)
		assert.Equal(t, "Иван", info.FirstName)
		assert.True(t, info.ID.Equal(model.FlexIDFromInt(3)))
		assert.True(t, info.InterlocutorID.Equal(model.FlexIDFromInt(7)))
	})

	t.Run("metrics failure is fatal", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			chatMetricsFunc: func(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error) {
				return nil, errors.New("collector down")
			},
		})

		_, err := agg.LoadContactMetrics(ctx, "tok", "s1", "7")
		assert.Error(t, err)
	})

	t.Run("enrichment failures degrade to placeholder info", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			chatMetricsFunc: func(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error) {
				return map[string]any{}, nil
			},
			subscriptionsFunc: func(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
				return nil, errors.New("collector down")
			},
			contactsFunc: func(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
				return nil, errors.New("collector down")
			},
		})

		metrics, err := agg.LoadContactMetrics(ctx, "tok", "s1", "7")
		require.NoError(t, err)

		info, ok := metrics["contactInfo"].(model.Contact)
		require.True(t, ok)
		assert.Equal(t, "Контакт #7", info.FirstName)
		assert.True(t, info.ID.Equal(model.FlexIDFromInt(7)))
	})
}

func TestListContacts(t *testing.T) {
	t.Run("aliases contact id as interlocutorId", func(t *testing.T) {
		agg := NewAggregator(&mockCollector{
			contactsFunc: func(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
				assert.Equal(t, "Иван", search)
				return []model.RawContact{
					{ID: model.FlexIDFromInt(5), FirstName: "Иван", LastName: strptr("Петров")},
				}, nil
			},
		})

		contacts, err := agg.ListContacts(context.Background(), "tok", "s1", "Иван")
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.True(t, contacts[0].ID.Equal(contacts[0].InterlocutorID))
		assert.Equal(t, "Иван", contacts[0].FirstName)
	})
}

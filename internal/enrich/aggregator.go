// Package enrich reconciles subscription records, raw contact records
// and chat metrics into display-ready contact entities. Sources are
// inconsistently typed and partially missing, so every merge runs a
// deterministic fallback chain and every id comparison goes through
// numeric coercion.
package enrich

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/model"
)

// CollectorAPI is the slice of the Collector client the aggregator
// needs.
type CollectorAPI interface {
	Subscriptions(ctx context.Context, token, sessionID string) ([]model.Subscription, error)
	Contacts(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error)
	ChatMetrics(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error)
}

// NameSource tags which branch of the fallback chain produced a display
// name.
type NameSource string

const (
	SourceContact          NameSource = "contact"
	SourceSubscriptionName NameSource = "subscriptionName"
	SourcePlaceholder      NameSource = "placeholder"
)

// ResolvedName is the tagged result of one fallback-chain run.
type ResolvedName struct {
	Source NameSource
	First  string
	Last   *string
}

type Aggregator struct {
	collector CollectorAPI
}

func NewAggregator(collector CollectorAPI) *Aggregator {
	return &Aggregator{collector: collector}
}

// LoadSubscribedContacts produces one Contact per subscription, in
// subscription order. The subscription fetch is required; the
// raw-contact fetch is optional enrichment whose failure degrades the
// names but never blocks delivery. Duplicate interlocutor ids in the
// upstream list propagate as-is.
func (a *Aggregator) LoadSubscribedContacts(ctx context.Context, token, sessionID string, enrich bool) ([]model.Contact, error) {
	subscriptions, err := a.collector.Subscriptions(ctx, token, sessionID)
	if err != nil {
		return nil, err
	}

	var contacts []model.RawContact
	if enrich {
		contacts, err = a.collector.Contacts(ctx, token, sessionID, "")
		if err != nil {
			log.Warn().
				Err(err).
				Str("sessionId", sessionID).
				Msg("contact fetch for enrichment failed, continuing without")
			contacts = nil
		}
	}

	result := make([]model.Contact, 0, len(subscriptions))
	for _, sub := range subscriptions {
		name := ResolveName(sub, contacts)
		result = append(result, model.Contact{
			ID:             sub.ID,
			FirstName:      name.First,
			LastName:       name.Last,
			InterlocutorID: sub.InterlocutorID,
		})
	}
	return result, nil
}

// LoadContactMetrics fetches chat metrics (required) and attaches a
// contactInfo block resolved through the same fallback chain, sourced
// fresh. Enrichment failures degrade to the placeholder; a metrics
// failure is fatal to the call.
func (a *Aggregator) LoadContactMetrics(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error) {
	metrics, err := a.collector.ChatMetrics(ctx, token, sessionID, interlocutorID)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = map[string]any{}
	}

	metrics["contactInfo"] = a.buildContactInfo(ctx, token, sessionID, interlocutorID)
	return metrics, nil
}

// ListContacts maps the raw contact list to the display shape, aliasing
// the contact id as interlocutorId.
func (a *Aggregator) ListContacts(ctx context.Context, token, sessionID, search string) ([]model.Contact, error) {
	raw, err := a.collector.Contacts(ctx, token, sessionID, search)
	if err != nil {
		return nil, err
	}

	result := make([]model.Contact, 0, len(raw))
	for _, rc := range raw {
		result = append(result, model.Contact{
			ID:             rc.ID,
			FirstName:      rc.FirstName,
			LastName:       rc.LastName,
			InterlocutorID: rc.ID,
		})
	}
	return result, nil
}

func (a *Aggregator) buildContactInfo(ctx context.Context, token, sessionID, interlocutorID string) model.Contact {
	target := model.NewFlexID(interlocutorID)

	sub := model.Subscription{InterlocutorID: target}
	subscriptions, err := a.collector.Subscriptions(ctx, token, sessionID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("sessionId", sessionID).
			Msg("subscription fetch for contact info failed, continuing without")
	} else {
		for _, s := range subscriptions {
			if s.InterlocutorID.Equal(target) {
				sub = s
				break
			}
		}
	}

	contacts, err := a.collector.Contacts(ctx, token, sessionID, "")
	if err != nil {
		log.Warn().
			Err(err).
			Str("sessionId", sessionID).
			Msg("contact fetch for contact info failed, continuing without")
		contacts = nil
	}

	name := ResolveName(sub, contacts)

	id := sub.ID
	if id.IsZero() {
		id = target
	}
	return model.Contact{
		ID:             id,
		FirstName:      name.First,
		LastName:       name.Last,
		InterlocutorID: target,
	}
}

// ResolveName runs the fallback chain for one subscription:
// a raw contact matched by numerically-coerced id wins, then the
// subscription's stored contact name split on the first space, then the
// synthesized placeholder.
func ResolveName(sub model.Subscription, contacts []model.RawContact) ResolvedName {
	for _, rc := range contacts {
		if rc.ID.Equal(sub.InterlocutorID) {
			return ResolvedName{
				Source: SourceContact,
				First:  rc.FirstName,
				Last:   rc.LastName,
			}
		}
	}

	if name := strings.TrimSpace(sub.ContactName); name != "" {
		first, last, found := strings.Cut(name, " ")
		if found {
			last = strings.TrimSpace(last)
			return ResolvedName{
				Source: SourceSubscriptionName,
				First:  first,
				Last:   &last,
			}
		}
		return ResolvedName{
			Source: SourceSubscriptionName,
			First:  first,
		}
	}

	return ResolvedName{
		Source: SourcePlaceholder,
		First:  model.PlaceholderName(sub.InterlocutorID),
	}
}

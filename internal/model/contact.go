package model

// Contact is the unified view-model the gateway hands to the UI, one
// per subscription. InterlocutorID duplicates ID-matching data kept for
// historical API compatibility; it is pure duplication, not a second
// identity.
type Contact struct {
	ID             FlexID  `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       *string `json:"last_name"`
	InterlocutorID FlexID  `json:"interlocutorId"`
}

// Subscription is the Collector record linking a session to an
// interlocutor the user tracks. The gateway only reads it.
type Subscription struct {
	ID             FlexID `json:"id"`
	SessionID      string `json:"sessionId"`
	InterlocutorID FlexID `json:"interlocutorId"`
	ContactName    string `json:"contactName,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// RawContact is the Collector's full profile record, read for
// enrichment only.
type RawContact struct {
	ID        FlexID  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
	Phone     string  `json:"phone"`
	HasPhoto  bool    `json:"has_photo"`
	LastSeen  string  `json:"last_seen"`
}

// PlaceholderNamePrefix starts every synthesized display name emitted
// when neither a raw contact nor a subscription name is available.
const PlaceholderNamePrefix = "Контакт #"

// PlaceholderName synthesizes the fallback display name for an
// interlocutor.
func PlaceholderName(id FlexID) string {
	return PlaceholderNamePrefix + id.String()
}

// IsPlaceholderNamed reports whether a contact still carries the
// synthesized generic name and no last name, meaning enrichment never
// found real profile data for it.
func (c Contact) IsPlaceholderNamed() bool {
	return c.LastName == nil && len(c.FirstName) >= len(PlaceholderNamePrefix) &&
		c.FirstName[:len(PlaceholderNamePrefix)] == PlaceholderNamePrefix
}

// Recommendation is the Collector's per-interlocutor advice record.
type Recommendation struct {
	ID                 FlexID `json:"id"`
	RecommendationText string `json:"recommendationText"`
	CreatedAt          string `json:"createdAt"`
}

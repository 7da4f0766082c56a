package model

// Session is one phone-number login attempt / linked account handle,
// tracked through the multi-step verification lifecycle. Records are
// owned by the per-user state container; everything else holds read
// copies plus a phone+sessionId pointer into it.
type Session struct {
	Phone     string        `json:"phone"`
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	IsActive  bool          `json:"isActive"`
	LastError *string       `json:"lastError"`
}

// SessionResponse is the wire shape the Collector returns for login
// steps, status polls and session listings.
type SessionResponse struct {
	SessionID   string `json:"sessionId"`
	Status      string `json:"status"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Error       string `json:"error,omitempty"`
}

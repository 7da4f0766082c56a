package model

import "github.com/rs/zerolog/log"

type SessionStatus string

const (
	StatusPending                  SessionStatus = "Pending"
	StatusVerificationCodeRequired SessionStatus = "VerificationCodeRequired"
	StatusTwoFactorRequired        SessionStatus = "TwoFactorRequired"
	StatusSuccess                  SessionStatus = "Success"
	StatusFailed                   SessionStatus = "Failed"
	StatusExpired                  SessionStatus = "Expired"
)

// Terminal reports whether no further transition happens for this
// session id. A retry after a terminal status is a logically new
// session, even when the Collector reuses the id.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusExpired:
		return true
	}
	return false
}

func (s SessionStatus) Known() bool {
	switch s {
	case StatusPending, StatusVerificationCodeRequired, StatusTwoFactorRequired,
		StatusSuccess, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// NormalizeStatus maps a Collector-reported status onto the known
// enumeration. Transitions are server-driven and mirrored as-is, but a
// value outside the enumeration is recorded as Failed with a diagnostic
// rather than passed through.
func NormalizeStatus(raw string) SessionStatus {
	s := SessionStatus(raw)
	if !s.Known() {
		log.Warn().Str("status", raw).Msg("unrecognized session status from collector, treating as Failed")
		return StatusFailed
	}
	return s
}

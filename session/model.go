package session

import "time"

// Session is the server-tracked record a bearer credential must resolve to.
// A session is created only after successful code verification and is
// destroyed on logout or expiry. Multiple concurrent sessions per account
// are allowed.
type Session struct {
	SessionID string
	AccountID string
	Email     string

	Role string

	Authenticated     bool
	TwoFactorVerified bool

	IP        string
	UserAgent string

	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the session's absolute lifetime has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

package session

import "time"

// Session is one persisted login.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"created_at"`
	Expiration  time.Time `json:"expiration"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// Expired reports whether the session is no longer valid at now. The
// expiration instant itself is already invalid.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expiration)
}

// Client describes the caller presenting or receiving a session.
type Client struct {
	IP        string
	UserAgent string
}

package session

import "strings"

// Session is the identity carried inside the signed session cookie. The
// server holds no session table; the cookie is the session.
type Session struct {
	UserID    int64  `json:"userId,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LoggedIn reports whether the session identifies a user. A session without a
// user id must never be treated as authenticated.
func (s Session) LoggedIn() bool {
	return s.UserID > 0
}

// DisplayName derives the name to show, never stored so it cannot go stale:
// first+last joined and trimmed, else the phone number, else empty.
func (s Session) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
	if name != "" {
		return name
	}
	return s.Phone
}

// complete reports whether enrichment has nothing left to fill in.
func (s Session) complete() bool {
	return s.FirstName != "" && s.LastName != "" && s.Phone != ""
}

package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kadochi/server/internal/commerce"
	"github.com/kadochi/server/internal/logger"
	"github.com/kadochi/server/internal/token"
)

// Manager owns the mapping between a verified identity and the session
// cookie, and lazily enriches sessions with profile fields from the commerce
// API.
type Manager struct {
	tokens    *token.Service
	cookies   token.CookieConfig
	customers commerce.CustomerSource
	ttl       time.Duration
}

// NewManager creates a session manager. customers may be nil, in which case
// enrichment is skipped.
func NewManager(tokens *token.Service, cookies token.CookieConfig, customers commerce.CustomerSource, ttl time.Duration) *Manager {
	return &Manager{
		tokens:    tokens,
		cookies:   cookies,
		customers: customers,
		ttl:       ttl,
	}
}

// Get decodes the session cookie. It never fails: an absent, malformed,
// expired, or badly signed cookie all yield the logged-out session.
func (m *Manager) Get(r *http.Request) Session {
	cookie, err := r.Cookie(m.cookies.SessionName)
	if err != nil || cookie.Value == "" {
		return Session{}
	}
	claims, err := m.tokens.VerifySession(cookie.Value)
	if err != nil {
		return Session{}
	}
	return Session{
		UserID:    claims.UserID,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Phone:     claims.Phone,
	}
}

// Set signs s and writes it to the session cookie.
func (m *Manager) Set(w http.ResponseWriter, r *http.Request, s Session) error {
	signed, err := m.tokens.SignSession(token.SessionClaims{
		UserID:    s.UserID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Phone:     s.Phone,
	}, m.ttl)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	m.cookies.SetSession(w, r, signed, m.ttl)
	return nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	m.cookies.ClearSession(w, r)
}

// Enrich fills missing profile fields from the commerce API, best effort. At
// most one remote call is made, and only when a name or the phone is missing.
// Upstream values only ever fill empty fields; a known value is never
// replaced, and an empty upstream field erases nothing. On any failure the
// session is returned as-is so the page still renders with what was known.
func (m *Manager) Enrich(ctx context.Context, w http.ResponseWriter, r *http.Request, s Session) Session {
	if !s.LoggedIn() || s.complete() || m.customers == nil {
		return s
	}

	cust, err := m.customers.CustomerByID(ctx, s.UserID)
	if err != nil {
		logger.FromContext(ctx).Debug().Err(err).Int64("user_id", s.UserID).Msg("session enrichment skipped")
		return s
	}

	changed := false
	if s.FirstName == "" && cust.FirstName != "" {
		s.FirstName = cust.FirstName
		changed = true
	}
	if s.LastName == "" && cust.LastName != "" {
		s.LastName = cust.LastName
		changed = true
	}
	if s.Phone == "" && cust.Phone != "" {
		s.Phone = cust.Phone
		changed = true
	}

	if changed {
		// Persist the merged session; losing this write only costs a
		// re-enrichment on the next read.
		if err := m.Set(w, r, s); err != nil {
			logger.FromContext(ctx).Debug().Err(err).Msg("persisting enriched session failed")
		}
	}
	return s
}

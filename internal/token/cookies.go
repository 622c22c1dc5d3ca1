package token

import (
	"net/http"
	"strings"
	"time"
)

// CookieConfig writes the session and CSRF cookies with the attributes this
// core requires.
type CookieConfig struct {
	SessionName string
	CSRFName    string
	// Domain scopes cookies to a configurable domain when the request host
	// matches its suffix; otherwise cookies stay host-only.
	Domain string
}

// SetSession writes the signed session token. The session cookie is opaque to
// scripts.
func (c CookieConfig) SetSession(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.SessionName,
		Value:    token,
		Path:     "/",
		Domain:   c.domainFor(r),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires the session cookie so the next read sees a logged-out
// session.
func (c CookieConfig) ClearSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.SessionName,
		Value:    "",
		Path:     "/",
		Domain:   c.domainFor(r),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetCSRF writes the CSRF token. The cookie is deliberately legible to
// scripts: the double-submit pattern requires the caller to echo its value in
// a request header.
func (c CookieConfig) SetCSRF(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.CSRFName,
		Value:    token,
		Path:     "/",
		Domain:   c.domainFor(r),
		MaxAge:   int(CSRFTTL.Seconds()),
		HttpOnly: false,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) domainFor(r *http.Request) string {
	if c.Domain == "" {
		return ""
	}
	host := r.Host
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	if host == c.Domain || strings.HasSuffix(host, "."+c.Domain) {
		return c.Domain
	}
	return ""
}

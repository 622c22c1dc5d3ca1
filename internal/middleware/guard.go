package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// GuardConfig configures the access guard.
type GuardConfig struct {
	// SessionCookie is the session cookie name whose presence is checked.
	SessionCookie string
	// LoginPath is where unauthenticated requests to protected areas are sent.
	LoginPath string
	// AllowPaths always stay reachable unauthenticated, even under a
	// protected prefix. Checked before the prefixes.
	AllowPaths []string
	// ProtectedPrefixes require an active session.
	ProtectedPrefixes []string
}

// Guard is a cheap pre-filter that runs before everything else. It checks
// cookie presence only; deep validation happens in the session manager when
// the session is actually used.
func Guard(cfg GuardConfig) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(cfg.AllowPaths))
	for _, p := range cfg.AllowPaths {
		allow[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allow[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			for _, prefix := range cfg.ProtectedPrefixes {
				if !strings.HasPrefix(r.URL.Path, prefix) {
					continue
				}
				if _, err := r.Cookie(cfg.SessionCookie); err != nil {
					returnTo := r.URL.Path
					if r.URL.RawQuery != "" {
						returnTo += "?" + r.URL.RawQuery
					}
					http.Redirect(w, r, cfg.LoginPath+"?return_to="+url.QueryEscape(returnTo), http.StatusFound)
					return
				}
				break
			}

			next.ServeHTTP(w, r)
		})
	}
}

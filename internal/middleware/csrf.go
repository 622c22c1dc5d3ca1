package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/kadochi/server/internal/token"
)

// CSRFHeader is the request header callers must echo the CSRF cookie into on
// every state-changing call.
const CSRFHeader = "X-CSRF-Token"

// RequireCSRF rejects state-changing requests whose CSRF header and cookie do
// not pass the double-submit check. A failed check always propagates as a
// rejection; it is never downgraded.
func RequireCSRF(tokens *token.Service, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headerToken := r.Header.Get(CSRFHeader)

			var cookieToken string
			if cookie, err := r.Cookie(cookieName); err == nil {
				cookieToken = cookie.Value
			}

			if !tokens.VerifyCSRF(headerToken, cookieToken) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "csrf_mismatch",
						"message": "missing or invalid CSRF token",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

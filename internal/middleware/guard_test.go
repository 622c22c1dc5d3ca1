package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadochi/server/internal/token"
)

func newGuarded() http.Handler {
	guard := Guard(GuardConfig{
		SessionCookie: "kdsid",
		LoginPath:     "/login",
		AllowPaths: []string{
			"/checkout/payment-result",
			"/api/payment/request",
			"/api/payment/verify",
			"/account/orders",
		},
		ProtectedPrefixes: []string{"/account", "/checkout"},
	})
	return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestGuard_publicPathPassesThrough(t *testing.T) {
	w := httptest.NewRecorder()
	newGuarded().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/123", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuard_protectedWithoutCookieRedirects(t *testing.T) {
	w := httptest.NewRecorder()
	newGuarded().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/account/profile?tab=addresses", nil))

	require.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	assert.Equal(t, "/login?return_to=%2Faccount%2Fprofile%3Ftab%3Daddresses", loc)
}

func TestGuard_protectedWithCookiePasses(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/account/profile", nil)
	// An expired or forged cookie still passes the guard; the session manager
	// is the authority on actual use.
	r.AddCookie(&http.Cookie{Name: "kdsid", Value: "anything"})

	w := httptest.NewRecorder()
	newGuarded().ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuard_allowListBeatsProtectedPrefix(t *testing.T) {
	for _, path := range []string{"/checkout/payment-result", "/account/orders", "/api/payment/verify"} {
		w := httptest.NewRecorder()
		newGuarded().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, "path %s must stay reachable without a session", path)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "no HSTS on plaintext")
}

func TestRequireCSRF(t *testing.T) {
	tokens := token.NewService("test-secret-at-least-32-characters!!")
	protected := RequireCSRF(tokens, "kdcsrf")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	valid, err := tokens.IssueCSRF()
	require.NoError(t, err)

	t.Run("valid pair passes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		r.Header.Set(CSRFHeader, valid)
		r.AddCookie(&http.Cookie{Name: "kdcsrf", Value: valid})
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		r.AddCookie(&http.Cookie{Name: "kdcsrf", Value: valid})
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing cookie rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		r.Header.Set(CSRFHeader, valid)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unequal tokens rejected", func(t *testing.T) {
		other, err := tokens.IssueCSRF()
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		r.Header.Set(CSRFHeader, valid)
		r.AddCookie(&http.Cookie{Name: "kdcsrf", Value: other})
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadochi/server/internal/config"
	"github.com/kadochi/server/internal/http/handlers"
	"github.com/kadochi/server/internal/httputil"
	"github.com/kadochi/server/internal/metrics"
	"github.com/kadochi/server/internal/otp"
	"github.com/kadochi/server/internal/payment"
	"github.com/kadochi/server/internal/ratelimit"
	"github.com/kadochi/server/internal/session"
	"github.com/kadochi/server/internal/token"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		SessionCookieName: "sid",
		CSRFCookieName:    "csrf",
		LoginPath:         "/login",
		ProtectedPrefixes: []string{"/account", "/checkout"},
	}

	store := otp.NewMemoryStore()
	issuer := otp.NewIssuer(otp.IssuerConfig{
		Store:       store,
		Limiter:     ratelimit.NewMemoryLimiter(time.Hour),
		Client:      httputil.NewClient(time.Second),
		RatePerHour: 5,
	})
	tokens := token.NewService("router-test-secret")
	cookies := token.CookieConfig{SessionName: "sid", CSRFName: "csrf"}
	sessions := session.NewManager(tokens, cookies, nil, time.Hour)

	gateway := payment.NewGateway("", true, httputil.NewClient(time.Second))
	authorizer := payment.NewAuthorizer(gateway, "", "")

	m := metrics.New()
	authHandler := handlers.NewAuthHandler(issuer, otp.NewVerifier(store), nil, sessions, tokens, cookies, m)
	paymentHandler := handlers.NewPaymentHandler(authorizer, m)

	return NewRouter(cfg, zerolog.Nop(), tokens, authHandler, paymentHandler, m.Handler())
}

func TestRouterPublicEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterGuardsProtectedPrefixes(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account/profile", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?return_to=%2Faccount%2Fprofile", rec.Header().Get("Location"))

	// The payment-result page stays reachable mid-handshake without a session.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/payment-result", nil))
	assert.NotEqual(t, http.StatusFound, rec.Code)

	// A session cookie's presence is enough to get past the guard.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/account/profile", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "anything"})
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusFound, rec.Code)
}

func TestRouterCSRFGate(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payment/request", strings.NewReader(`{"amount":1000}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code, "payment endpoints require the csrf pair")

	// Fetch a token, echo it back in header and cookie, and the gate opens.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	csrf := body["csrfToken"]
	require.NotEmpty(t, csrf)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"phone":"09123456789","code":"12345"}`))
	req.Header.Set("X-CSRF-Token", csrf)
	req.AddCookie(&http.Cookie{Name: "csrf", Value: csrf})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Past the gate; the login itself fails on the unknown code.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &Service{
		secret: []byte("test-secret-at-least-32-characters!!"),
		now:    func() time.Time { return now },
	}
	return s, &now
}

func TestSession_roundTrip(t *testing.T) {
	s, _ := newTestService()

	in := SessionClaims{UserID: 42, FirstName: "Sara", LastName: "Ahmadi", Phone: "09120000000"}
	signed, err := s.SignSession(in, time.Hour)
	require.NoError(t, err)

	out, err := s.VerifySession(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.UserID)
	assert.Equal(t, "Sara", out.FirstName)
	assert.Equal(t, "Ahmadi", out.LastName)
	assert.Equal(t, "09120000000", out.Phone)
}

func TestSession_expiry(t *testing.T) {
	s, now := newTestService()

	signed, err := s.SignSession(SessionClaims{UserID: 1}, time.Hour)
	require.NoError(t, err)

	*now = now.Add(time.Hour + time.Minute)
	_, err = s.VerifySession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_tamperedSignature(t *testing.T) {
	s, _ := newTestService()

	signed, err := s.SignSession(SessionClaims{UserID: 1}, time.Hour)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = s.VerifySession(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.VerifySession("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_wrongKey(t *testing.T) {
	s, _ := newTestService()
	other := NewService("a-completely-different-signing-key!!")

	signed, err := other.SignSession(SessionClaims{UserID: 1}, time.Hour)
	require.NoError(t, err)

	_, err = s.VerifySession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyCSRF(t *testing.T) {
	s, _ := newTestService()

	tok, err := s.IssueCSRF()
	require.NoError(t, err)

	assert.True(t, s.VerifyCSRF(tok, tok))
	assert.False(t, s.VerifyCSRF("", tok), "missing header side")
	assert.False(t, s.VerifyCSRF(tok, ""), "missing cookie side")

	other, err := s.IssueCSRF()
	require.NoError(t, err)
	assert.False(t, s.VerifyCSRF(tok, other), "both valid but unequal must fail")

	mutated := tok[:len(tok)-1] + flipLastChar(tok)
	assert.False(t, s.VerifyCSRF(mutated, tok))
	assert.False(t, s.VerifyCSRF(tok, mutated))
}

func TestVerifyCSRF_expired(t *testing.T) {
	s, now := newTestService()

	tok, err := s.IssueCSRF()
	require.NoError(t, err)

	*now = now.Add(CSRFTTL + time.Minute)
	assert.False(t, s.VerifyCSRF(tok, tok))
}

func flipLastChar(s string) string {
	last := s[len(s)-1]
	if last == 'A' {
		return "B"
	}
	return "A"
}

func TestCookieConfig_domainScoping(t *testing.T) {
	cfg := CookieConfig{SessionName: "kdsid", CSRFName: "kdcsrf", Domain: "kadochi.com"}

	tests := []struct {
		host       string
		wantDomain string
	}{
		{"kadochi.com", "kadochi.com"},
		{"www.kadochi.com", "kadochi.com"},
		{"www.kadochi.com:8443", "kadochi.com"},
		{"evil-kadochi.com", ""},
		{"localhost:8080", ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host
			w := httptest.NewRecorder()
			cfg.SetCSRF(w, r, "tok")

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, tt.wantDomain, cookies[0].Domain)
			assert.False(t, cookies[0].HttpOnly, "csrf cookie must stay script-legible")
			assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
		})
	}
}

func TestCookieConfig_sessionCookie(t *testing.T) {
	cfg := CookieConfig{SessionName: "kdsid", CSRFName: "kdcsrf"}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	cfg.SetSession(w, r, "tok", time.Hour)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	w = httptest.NewRecorder()
	cfg.ClearSession(w, r)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

package token

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CSRFTTL bounds how long an issued CSRF token verifies.
const CSRFTTL = 30 * time.Minute

// ErrInvalidToken covers signature mismatch, malformed structure, and expiry
// alike; distinguishing them has no legitimate use by the caller.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims is the claims bundle carried inside the session cookie.
type SessionClaims struct {
	UserID    int64  `json:"uid,omitempty"`
	FirstName string `json:"fn,omitempty"`
	LastName  string `json:"ln,omitempty"`
	Phone     string `json:"ph,omitempty"`
	jwt.RegisteredClaims
}

type csrfClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// Service signs and verifies compact, time-bound tokens with a single shared
// secret (HS256).
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService creates a token service.
func NewService(secret string) *Service {
	return &Service{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// SignSession creates a signed session token carrying claims, expiring after ttl.
func (s *Service) SignSession(claims SessionClaims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// VerifySession verifies and parses a session token.
func (s *Service) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueCSRF creates a signed CSRF token with a fresh nonce.
func (s *Service) IssueCSRF() (string, error) {
	now := s.now()
	claims := &csrfClaims{
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(CSRFTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign csrf token: %w", err)
	}
	return signed, nil
}

// VerifyCSRF implements the double-submit check: the header token and the
// cookie token must both be present, both verify independently against the
// signing key, and be byte-equal. Signature validity alone is insufficient.
func (s *Service) VerifyCSRF(headerToken, cookieToken string) bool {
	if headerToken == "" || cookieToken == "" {
		return false
	}
	if err := s.parse(headerToken, &csrfClaims{}); err != nil {
		return false
	}
	if err := s.parse(cookieToken, &csrfClaims{}); err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) == 1
}

func (s *Service) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

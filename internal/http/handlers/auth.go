package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kadochi/server/internal/commerce"
	"github.com/kadochi/server/internal/logger"
	"github.com/kadochi/server/internal/metrics"
	"github.com/kadochi/server/internal/otp"
	"github.com/kadochi/server/internal/session"
	"github.com/kadochi/server/internal/token"
)

// AuthHandler handles OTP issuance, login, session reads, and logout.
type AuthHandler struct {
	issuer    *otp.Issuer
	verifier  *otp.Verifier
	customers commerce.CustomerSource
	sessions  *session.Manager
	tokens    *token.Service
	cookies   token.CookieConfig
	metrics   *metrics.Metrics
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(
	issuer *otp.Issuer,
	verifier *otp.Verifier,
	customers commerce.CustomerSource,
	sessions *session.Manager,
	tokens *token.Service,
	cookies token.CookieConfig,
	m *metrics.Metrics,
) *AuthHandler {
	return &AuthHandler{
		issuer:    issuer,
		verifier:  verifier,
		customers: customers,
		sessions:  sessions,
		tokens:    tokens,
		cookies:   cookies,
		metrics:   m,
	}
}

// HandleCSRF handles GET /api/auth/csrf. The token is returned in the body
// and set as a script-legible cookie; callers echo it in the CSRF header.
func (h *AuthHandler) HandleCSRF(w http.ResponseWriter, r *http.Request) {
	tok, err := h.tokens.IssueCSRF()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}
	h.cookies.SetCSRF(w, r, tok)
	respondJSON(w, http.StatusOK, map[string]string{"csrfToken": tok})
}

// requestOTPRequest is the request body for POST /api/auth/otp
type requestOTPRequest struct {
	Phone string `json:"phone"`
}

// HandleRequestOTP handles POST /api/auth/otp.
func (h *AuthHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	ttl, err := h.issuer.Issue(r.Context(), req.Phone, logger.RemoteAddr(r))
	if err != nil {
		h.countOTP(issueOutcome(err))
		log := logger.FromContext(r.Context())

		var sendErr *otp.SendError
		switch {
		case errors.Is(err, otp.ErrInvalidPhone):
			respondError(w, http.StatusBadRequest, "invalid_phone", "phone number is invalid")
		case errors.Is(err, otp.ErrRateLimited):
			if h.metrics != nil {
				h.metrics.RateLimitDenied.WithLabelValues("otp").Inc()
			}
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
		case errors.Is(err, otp.ErrProviderNotConfigured):
			log.Error().Msg("otp provider not configured")
			respondError(w, http.StatusInternalServerError, "misconfigured", "verification service unavailable")
		case errors.Is(err, otp.ErrNoCode):
			log.Error().Msg("otp provider returned no usable code")
			respondError(w, http.StatusInternalServerError, "provider_no_code", "verification service unavailable")
		case errors.As(err, &sendErr):
			log.Error().Int("status", sendErr.Status).Msg("otp provider send failed")
			respondError(w, http.StatusBadGateway, "provider_failed", "could not send the code, try again")
		default:
			log.Error().Err(err).Msg("otp issue failed")
			respondError(w, http.StatusInternalServerError, "internal_error", "could not send the code")
		}
		return
	}

	h.countOTP("success")
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"ttlSeconds": int(ttl.Seconds()),
	})
}

// loginRequest is the request body for POST /api/auth/login
type loginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// HandleLogin handles POST /api/auth/login: verifies the one-time code, finds
// or creates the customer, and establishes the session cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	if err := h.verifier.Verify(r.Context(), req.Phone, req.Code); err != nil {
		logger.FromContext(r.Context()).Info().
			Str("phone", logger.MaskPhone(otp.NormalizePhone(req.Phone))).
			Msg("otp verification failed")
		respondError(w, http.StatusUnauthorized, "invalid_code", "invalid or expired code")
		return
	}

	if h.customers == nil {
		respondError(w, http.StatusInternalServerError, "misconfigured", "login unavailable")
		return
	}

	phone := otp.NormalizePhone(req.Phone)
	cust, err := h.customers.CustomerByPhone(r.Context(), phone)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("customer lookup failed after otp verification")
		respondError(w, http.StatusBadGateway, "upstream_failed", "login temporarily unavailable")
		return
	}

	s := session.Session{
		UserID:    cust.ID,
		FirstName: cust.FirstName,
		LastName:  cust.LastName,
		Phone:     cust.Phone,
	}
	if s.Phone == "" {
		s.Phone = phone
	}

	if err := h.sessions.Set(w, r, s); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not establish session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"session": sessionPayload(s)})
}

// HandleSession handles GET /api/auth/session.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	s := h.sessions.Get(r)
	if !s.LoggedIn() {
		respondJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}

	s = h.sessions.Enrich(r.Context(), w, r, s)
	respondJSON(w, http.StatusOK, map[string]any{"session": sessionPayload(s)})
}

// HandleLogout handles POST /api/auth/logout. A state-changing verb plus the
// CSRF gate keep passive navigation and prefetching from logging users out.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func sessionPayload(s session.Session) map[string]any {
	payload := map[string]any{
		"userId": s.UserID,
	}
	if s.FirstName != "" {
		payload["firstName"] = s.FirstName
	}
	if s.LastName != "" {
		payload["lastName"] = s.LastName
	}
	if s.Phone != "" {
		payload["phone"] = s.Phone
	}
	if name := s.DisplayName(); name != "" {
		payload["displayName"] = name
	}
	return payload
}

func (h *AuthHandler) countOTP(outcome string) {
	if h.metrics != nil {
		h.metrics.OTPIssued.WithLabelValues(outcome).Inc()
	}
}

func issueOutcome(err error) string {
	switch {
	case errors.Is(err, otp.ErrInvalidPhone):
		return "invalid_phone"
	case errors.Is(err, otp.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, otp.ErrNoCode):
		return "no_code"
	default:
		return "provider_error"
	}
}

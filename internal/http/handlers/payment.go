package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/kadochi/server/internal/logger"
	"github.com/kadochi/server/internal/metrics"
	"github.com/kadochi/server/internal/payment"
)

// Authorizer is the payment handshake the handler drives. Satisfied by
// payment.Authorizer.
type Authorizer interface {
	Start(ctx context.Context, req payment.StartRequest) (*payment.StartResult, error)
	Verify(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error)
}

// PaymentHandler exposes the two-phase payment authorization handshake.
type PaymentHandler struct {
	authorizer Authorizer
	metrics    *metrics.Metrics
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(authorizer Authorizer, m *metrics.Metrics) *PaymentHandler {
	return &PaymentHandler{authorizer: authorizer, metrics: m}
}

// startRequest is the request body for POST /api/payment/request
type startRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Email       string  `json:"email"`
	Mobile      string  `json:"mobile"`
	OrderID     string  `json:"orderId"`
	Currency    string  `json:"currency"`
}

// HandleStart handles POST /api/payment/request.
func (h *PaymentHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	orderRef := req.OrderID
	if orderRef == "" {
		orderRef = uuid.NewString()
	}

	res, err := h.authorizer.Start(r.Context(), payment.StartRequest{
		Amount:      req.Amount,
		Description: req.Description,
		Email:       req.Email,
		Mobile:      req.Mobile,
		OrderRef:    orderRef,
		Currency:    req.Currency,
		Origin:      requestOrigin(r),
	})
	if err != nil {
		h.countStart(paymentOutcome(err))
		h.respondPaymentError(w, r, err, "invalid_amount", "amount must be a positive number")
		return
	}

	h.countStart("success")
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"authority":   res.Authority,
		"redirectUrl": res.RedirectURL,
	})
}

// verifyRequest is the request body for POST /api/payment/verify
type verifyRequest struct {
	Authority string  `json:"authority"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// HandleVerify handles POST /api/payment/verify.
func (h *PaymentHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	res, err := h.authorizer.Verify(r.Context(), payment.VerifyRequest{
		Authority: req.Authority,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		h.countVerify(paymentOutcome(err))
		h.respondPaymentError(w, r, err, "invalid_input", "authority and a positive amount are required")
		return
	}

	if res.Paid {
		h.countVerify("paid")
	} else {
		h.countVerify("unpaid")
	}

	payload := map[string]any{
		"ok":   true,
		"paid": res.Paid,
		"code": res.Code,
		"raw":  json.RawMessage(res.Raw),
	}
	if res.RefID != 0 {
		payload["referenceId"] = res.RefID
	}
	if res.CardPan != "" {
		payload["cardMask"] = res.CardPan
	}
	respondJSON(w, http.StatusOK, payload)
}

// respondPaymentError maps authorizer failures onto the endpoint's status
// contract: 400 for input validation, 500 for missing merchant
// configuration, 502 for gateway failures.
func (h *PaymentHandler) respondPaymentError(w http.ResponseWriter, r *http.Request, err error, inputCode, inputMessage string) {
	log := logger.FromContext(r.Context())

	var gwErr *payment.GatewayError
	switch {
	case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, inputCode, inputMessage)
	case errors.Is(err, payment.ErrNotConfigured):
		log.Error().Msg("payment merchant not configured")
		respondError(w, http.StatusInternalServerError, "misconfigured", "payments unavailable")
	case errors.As(err, &gwErr):
		log.Error().Int("status", gwErr.Status).Msg("payment gateway call failed")
		respondError(w, http.StatusBadGateway, "gateway_failed", "payment gateway unavailable, try again")
	default:
		log.Error().Err(err).Msg("payment operation failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "payment failed")
	}
}

func paymentOutcome(err error) string {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, payment.ErrNotConfigured):
		return "misconfigured"
	default:
		return "gateway_error"
	}
}

func (h *PaymentHandler) countStart(outcome string) {
	if h.metrics != nil {
		h.metrics.PaymentStarted.WithLabelValues(outcome).Inc()
	}
}

func (h *PaymentHandler) countVerify(outcome string) {
	if h.metrics != nil {
		h.metrics.PaymentVerified.WithLabelValues(outcome).Inc()
	}
}

// requestOrigin reconstructs the inbound request's own origin for callback
// derivation, honoring the proxy protocol header.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strings"

	"github.com/kadochi/server/internal/logger"
)

// Currency conventions accepted by the gateway. Toman is the default; Rial
// must be selected explicitly. The same convention must be used at request
// and verify for a given transaction.
const (
	CurrencyToman = "IRT"
	CurrencyRial  = "IRR"
)

// Result codes the gateway reports for a settled payment. 101 means "already
// verified" and is treated as equally successful: re-verification is
// idempotent, not an error.
const (
	codePaid            = 100
	codeAlreadyVerified = 101
)

var (
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrInvalidInput  = errors.New("authority and a positive amount are required")
	ErrNotConfigured = errors.New("payment merchant not configured")
)

// Authorizer orchestrates the two-phase handshake with the payment gateway.
// No transaction state is held between phases; the gateway owns it, keyed by
// its authority identifier.
type Authorizer struct {
	gateway     *Gateway
	merchantID  string
	callbackURL string
}

// NewAuthorizer creates a payment authorizer.
func NewAuthorizer(gateway *Gateway, merchantID, callbackURL string) *Authorizer {
	return &Authorizer{
		gateway:     gateway,
		merchantID:  merchantID,
		callbackURL: callbackURL,
	}
}

// StartRequest describes a payment to authorize. Amount is in minor units;
// fractional input is floored. Origin is the inbound request's own origin,
// used to derive a callback when none is usefully configured.
type StartRequest struct {
	Amount      float64
	Description string
	Email       string
	Mobile      string
	OrderRef    string
	Currency    string
	Origin      string
}

// StartResult carries the gateway's authority and where to send the user.
type StartResult struct {
	Authority   string
	RedirectURL string
}

// Start requests a redirect authority for the given amount.
func (a *Authorizer) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if a.merchantID == "" {
		return nil, ErrNotConfigured
	}

	amount := int64(math.Floor(req.Amount))
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = CurrencyToman
	}

	callback := a.resolveCallback(req.Origin)

	metadata := map[string]string{}
	if req.Email != "" {
		metadata["email"] = req.Email
	}
	if req.Mobile != "" {
		metadata["mobile"] = req.Mobile
	}
	if req.OrderRef != "" {
		metadata["order_id"] = req.OrderRef
	}

	resp, err := a.gateway.Request(ctx, amount, callback, req.Description, currency, metadata)
	if err != nil {
		return nil, err
	}
	if resp.Data.Authority == "" {
		return nil, &GatewayError{Status: 200, Body: string(resp.Raw)}
	}

	logger.FromContext(ctx).Info().
		Str("authority", resp.Data.Authority).
		Int64("amount", amount).
		Str("currency", currency).
		Msg("payment authority issued")

	return &StartResult{
		Authority:   resp.Data.Authority,
		RedirectURL: a.gateway.RedirectURL(resp.Data.Authority),
	}, nil
}

// VerifyRequest identifies the transaction to confirm after the user returns.
type VerifyRequest struct {
	Authority string
	Amount    float64
	Currency  string
}

// VerifyResult reports the gateway's answer. Raw always carries the gateway
// payload so the caller can make the final business decision.
type VerifyResult struct {
	Paid    bool
	Code    int
	RefID   int64
	CardPan string
	Raw     json.RawMessage
}

// Verify confirms settlement for an authority. Amount-mismatch detection
// between the two phases is the gateway's responsibility; whatever it reports
// is passed through.
func (a *Authorizer) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if a.merchantID == "" {
		return nil, ErrNotConfigured
	}

	amount := int64(math.Floor(req.Amount))
	if req.Authority == "" || amount <= 0 {
		return nil, ErrInvalidInput
	}

	currency := req.Currency
	if currency == "" {
		currency = CurrencyToman
	}

	resp, err := a.gateway.Verify(ctx, req.Authority, amount, currency)
	if err != nil {
		return nil, err
	}

	code := resp.Data.Code
	return &VerifyResult{
		Paid:    code == codePaid || code == codeAlreadyVerified,
		Code:    code,
		RefID:   resp.Data.RefID,
		CardPan: resp.Data.CardPan,
		Raw:     resp.Raw,
	}, nil
}

// resolveCallback prefers the configured callback URL; an absent value or an
// obviously-unconfigured placeholder host falls back to the current request's
// own origin.
func (a *Authorizer) resolveCallback(origin string) string {
	if a.callbackURL != "" && !isPlaceholder(a.callbackURL) {
		return a.callbackURL
	}
	return strings.TrimRight(origin, "/") + "/payment/callback"
}

func isPlaceholder(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host == "" ||
		host == "example.com" ||
		strings.HasSuffix(host, ".example.com") ||
		host == "your-shop.example"
}

package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadochi/server/internal/logger"
	"github.com/kadochi/server/internal/ratelimit"
)

// Sentinel failures for OTP issuance. Handlers map these to HTTP statuses.
var (
	ErrInvalidPhone          = errors.New("invalid phone number")
	ErrProviderNotConfigured = errors.New("otp provider not configured")
	ErrRateLimited           = errors.New("rate limit exceeded")
	ErrNoCode                = errors.New("provider response contained no code")
)

// SendError reports a non-2xx provider response. Status and body are kept for
// diagnostics; they never reach the end user.
type SendError struct {
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("provider send failed: status=%d body=%q", e.Status, e.Body)
}

// rate-limit bucket names; phone- and address-keyed windows are independent
const (
	BucketPhone = "otp_phone"
	BucketAddr  = "otp_addr"
)

// Issuer obtains a short-lived code for a phone number from the external SMS
// provider and records it for later verification.
type Issuer struct {
	store       Store
	limiter     ratelimit.Limiter
	client      *http.Client
	providerURL string
	ttl         time.Duration
	ratePerHour int
	now         func() time.Time
}

// IssuerConfig collects Issuer dependencies.
type IssuerConfig struct {
	Store       Store
	Limiter     ratelimit.Limiter
	Client      *http.Client
	ProviderURL string
	TTL         time.Duration
	RatePerHour int
}

// NewIssuer creates an OTP issuer.
func NewIssuer(cfg IssuerConfig) *Issuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 180 * time.Second
	}
	return &Issuer{
		store:       cfg.Store,
		limiter:     cfg.Limiter,
		client:      cfg.Client,
		providerURL: cfg.ProviderURL,
		ttl:         ttl,
		ratePerHour: cfg.RatePerHour,
		now:         time.Now,
	}
}

// Issue requests a code for phoneRaw and stores it for verification. The code
// itself travels to the user only through the provider's SMS channel; callers
// get back the TTL. callerAddr is the request's source address, throttled
// independently from the phone.
//
// Both rate-limit buckets must pass; the check short-circuits on the first
// deny without touching later buckets.
func (i *Issuer) Issue(ctx context.Context, phoneRaw, callerAddr string) (time.Duration, error) {
	phone := NormalizePhone(phoneRaw)
	if phone == "" {
		return 0, ErrInvalidPhone
	}
	if i.providerURL == "" {
		return 0, ErrProviderNotConfigured
	}

	if !i.limiter.Allow(ctx, BucketPhone, phone, i.ratePerHour) {
		return 0, ErrRateLimited
	}
	if !i.limiter.Allow(ctx, BucketAddr, callerAddr, i.ratePerHour) {
		return 0, ErrRateLimited
	}

	code, err := i.requestCode(ctx, phone)
	if err != nil {
		return 0, err
	}

	// The record is written only after the provider call succeeded.
	expiresAt := i.now().Add(i.ttl)
	if err := i.store.Put(ctx, phone, Record{Code: code, ExpiresAt: expiresAt}); err != nil {
		return 0, fmt.Errorf("store otp record: %w", err)
	}

	logger.FromContext(ctx).Info().
		Str("phone", logger.MaskPhone(phone)).
		Dur("ttl", i.ttl).
		Msg("otp issued")

	return i.ttl, nil
}

// requestCode calls the SMS provider and extracts the code from its response
// body.
func (i *Issuer) requestCode(ctx context.Context, phone string) (string, error) {
	payload, err := json.Marshal(map[string]string{"phone": phone})
	if err != nil {
		return "", fmt.Errorf("marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.providerURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", &SendError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", &SendError{Status: resp.StatusCode, Body: "unreadable response body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SendError{Status: resp.StatusCode, Body: string(body)}
	}

	code, ok := ExtractCode(body)
	if !ok {
		return "", ErrNoCode
	}
	return code, nil
}

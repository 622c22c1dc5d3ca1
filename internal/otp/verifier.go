package otp

import (
	"context"
	"errors"
	"fmt"
)

// ErrCodeMismatch covers absent, expired, and wrong codes alike; callers have
// no legitimate use for telling them apart.
var ErrCodeMismatch = errors.New("invalid or expired code")

// Verifier consumes stored codes. A code verifies at most once and only
// before its expiry.
type Verifier struct {
	store Store
}

// NewVerifier creates an OTP verifier over the given store.
func NewVerifier(store Store) *Verifier {
	return &Verifier{store: store}
}

// Verify checks code against the pending record for phoneRaw and consumes it
// on success.
func (v *Verifier) Verify(ctx context.Context, phoneRaw, code string) error {
	phone := NormalizePhone(phoneRaw)
	if phone == "" || code == "" {
		return ErrCodeMismatch
	}
	ok, err := v.store.Consume(ctx, phone, code)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		return ErrCodeMismatch
	}
	return nil
}

package otp

import "strings"

// NormalizePhone reduces a phone input to its digits. All storage and
// rate-limit keys use this form so "0912-000-0000" and "09120000000" collide.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

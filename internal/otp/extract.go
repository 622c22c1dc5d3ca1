package otp

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// The SMS provider's response body is not contractually fixed, so extraction
// runs an ordered list of independent strategies and the first match wins.

var (
	codePattern = regexp.MustCompile(`[0-9]{4,6}`)
	digitRun    = regexp.MustCompile(`[0-9]+`)
)

// candidate field names seen across provider payloads
var codeFields = []string{"code", "otp", "token", "verification_code", "pin"}

type extractor func(body []byte) (string, bool)

var extractors = []extractor{
	extractKnownField,
	extractNumericField,
	extractRawScan,
}

// ExtractCode pulls a 4-6 digit code out of a provider response body.
func ExtractCode(body []byte) (string, bool) {
	for _, ex := range extractors {
		if code, ok := ex(body); ok {
			return code, true
		}
	}
	return "", false
}

func isCode(s string) bool {
	return len(s) >= 4 && len(s) <= 6 && codePattern.FindString(s) == s
}

func fieldAsString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}

// extractKnownField checks a fixed set of well-known JSON field names.
func extractKnownField(body []byte) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	for _, field := range codeFields {
		if s := fieldAsString(payload[field]); isCode(s) {
			return s, true
		}
	}
	return "", false
}

// extractNumericField falls back to any top-level JSON field whose value
// looks like a 4-6 digit code.
func extractNumericField(body []byte) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	for _, v := range payload {
		if s := fieldAsString(v); isCode(s) {
			return s, true
		}
	}
	return "", false
}

// extractRawScan takes the first 4-6 digit run anywhere in the raw body.
// Longer runs (order ids, timestamps) are not split into false candidates.
func extractRawScan(body []byte) (string, bool) {
	for _, run := range digitRun.FindAllString(string(body), -1) {
		if isCode(run) {
			return run, true
		}
	}
	return "", false
}

package httputil

import (
	"net/http"
	"time"
)

// NewClient creates an HTTP client with the given timeout and connection reuse
// tuned for repeated calls to the same upstream (commerce API, SMS provider,
// payment gateway).
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

package logger

import (
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Middleware injects a request-scoped logger into the context. Each request
// gets a request id (reused from X-Request-ID when the caller sent one) that
// is echoed back in the response headers.
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := logger.With().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", RemoteAddr(r)).
				Logger()

			reqLogger.Debug().Msg("request started")

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), reqLogger)))
		})
	}
}

// RemoteAddr returns the client address for throttle keys and logs. Proxy
// headers are not consulted here: the router's RealIP middleware has already
// folded them into r.RemoteAddr, and reading them again would let a direct
// caller pick its own address. The port is stripped so one client maps to one
// key across connections.
func RemoteAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

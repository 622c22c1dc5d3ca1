package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects counters for the core's hot paths.
type Metrics struct {
	registry *prometheus.Registry

	OTPIssued       *prometheus.CounterVec
	RateLimitDenied *prometheus.CounterVec
	PaymentStarted  *prometheus.CounterVec
	PaymentVerified *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		OTPIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_issue_total",
			Help: "OTP issuance attempts by outcome.",
		}, []string{"outcome"}),
		RateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Requests denied by the fixed-window limiter, by bucket.",
		}, []string{"bucket"}),
		PaymentStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_start_total",
			Help: "Payment authorization starts by outcome.",
		}, []string{"outcome"}),
		PaymentVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_verify_total",
			Help: "Payment verifications by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.OTPIssued, m.RateLimitDenied, m.PaymentStarted, m.PaymentVerified)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics holds the Prometheus collectors for the auth service.
// A nil *Metrics is valid and records nothing, so services and tests can
// run without a registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accounts"

// Label values for OtpVerification.
const (
	OtpVerified  = "verified"
	OtpMismatch  = "mismatch"
	OtpExhausted = "exhausted"
	OtpNoActive  = "no_active"
	OtpReplay    = "replay"
)

// Label values for OAuthState.
const (
	OAuthStateIssued   = "issued"
	OAuthStateConsumed = "consumed"
	OAuthStateMissing  = "missing"
)

type Metrics struct {
	registry *prometheus.Registry

	otpIssued           prometheus.Counter
	otpRateLimited      prometheus.Counter
	otpVerifications    *prometheus.CounterVec
	sessionsRegistered  prometheus.Counter
	sessionsRevoked     prometheus.Counter
	oauthStates         *prometheus.CounterVec
	housekeepingDeleted prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "OTP challenges issued.",
		}),
		otpRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_rate_limited_total",
			Help:      "OTP requests rejected by the per-email rate limit.",
		}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts by result.",
		}, []string{"result"}),
		sessionsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_registered_total",
			Help:      "Sessions registered.",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions removed by revoke, logout or rotation.",
		}),
		oauthStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_states_total",
			Help:      "OAuth state tokens by outcome.",
		}, []string{"result"}),
		housekeepingDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_deleted_total",
			Help:      "Expired OTP challenges removed by housekeeping.",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "HTTP requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.otpIssued,
		m.otpRateLimited,
		m.otpVerifications,
		m.sessionsRegistered,
		m.sessionsRevoked,
		m.oauthStates,
		m.housekeepingDeleted,
		m.httpRequests,
		m.httpDuration,
		m.httpInflight,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OtpIssued() {
	if m != nil {
		m.otpIssued.Inc()
	}
}

func (m *Metrics) OtpRateLimited() {
	if m != nil {
		m.otpRateLimited.Inc()
	}
}

func (m *Metrics) OtpVerification(result string) {
	if m != nil {
		m.otpVerifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SessionRegistered() {
	if m != nil {
		m.sessionsRegistered.Inc()
	}
}

func (m *Metrics) SessionsRevoked(n int) {
	if m != nil && n > 0 {
		m.sessionsRevoked.Add(float64(n))
	}
}

func (m *Metrics) OAuthState(result string) {
	if m != nil {
		m.oauthStates.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) HousekeepingDeleted(n int) {
	if m != nil && n > 0 {
		m.housekeepingDeleted.Add(float64(n))
	}
}

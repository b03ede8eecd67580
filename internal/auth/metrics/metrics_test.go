package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/auth/metrics"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCounters(t *testing.T) {
	t.Parallel()
	m := metrics.New()

	m.OtpIssued()
	m.OtpVerification(metrics.OtpMismatch)
	m.OtpVerification(metrics.OtpMismatch)
	m.OAuthState(metrics.OAuthStateConsumed)
	m.SessionsRevoked(3)
	m.SessionsRevoked(0)
	m.HousekeepingDeleted(2)

	out := scrape(t, m)
	require.Contains(t, out, "accounts_otp_issued_total 1")
	require.Contains(t, out, `accounts_otp_verifications_total{result="mismatch"} 2`)
	require.Contains(t, out, `accounts_oauth_states_total{result="consumed"} 1`)
	require.Contains(t, out, "accounts_sessions_revoked_total 3")
	require.Contains(t, out, "accounts_housekeeping_deleted_total 2")
	require.Contains(t, out, "go_goroutines")
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *metrics.Metrics

	require.NotPanics(t, func() {
		m.OtpIssued()
		m.OtpRateLimited()
		m.OtpVerification(metrics.OtpVerified)
		m.SessionRegistered()
		m.SessionsRevoked(1)
		m.OAuthState(metrics.OAuthStateIssued)
		m.HousekeepingDeleted(1)
	})
	require.Nil(t, m.Registry())

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	m.Middleware()(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()
	m := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/sessions/{id}/revoke", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := m.Middleware()(mux)

	for _, path := range []string{"/v1/auth/sessions/a/revoke", "/v1/auth/sessions/b/revoke", "/nope"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	out := scrape(t, m)
	require.Contains(t, out, `accounts_http_requests_total{method="POST",route="/v1/auth/sessions/{id}/revoke",status="204"} 2`)
	require.Contains(t, out, `accounts_http_requests_total{method="POST",route="unmatched",status="404"} 1`)
	require.Contains(t, out, "accounts_http_inflight_requests 0")
}

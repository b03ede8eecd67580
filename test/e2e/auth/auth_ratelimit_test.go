package auth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/stretchr/testify/require"
)

// TestRateLimitOtpRequestByIP verifies the code request endpoint is rate
// limited per client address with the strict profile.
func TestRateLimitOtpRequestByIP(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	limit := httpx.StrictLimit.Burst
	for i := range limit {
		_, err := svc.client.RequestOtp(t.Context(), uniqueEmail(t, fmt.Sprintf("ip%d", i)))
		require.NoError(t, err, "Should not be rate limited yet (request %d)", i+1)
	}

	_, err := svc.client.RequestOtp(t.Context(), uniqueEmail(t, "one-too-many"))
	require.ErrorIs(t, err, authsdk.ErrRateLimited)
	t.Logf("Successfully rate limited after %d requests to /v1/auth/otp/request", limit)
}

// TestRateLimitOtpRequestByEmail verifies each address gets a limited
// number of codes per window and the reply says when to retry.
func TestRateLimitOtpRequestByEmail(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	email := uniqueEmail(t, "flood")
	for i := range service.DefaultOtpRateLimit {
		_, err := svc.client.RequestOtp(t.Context(), email)
		require.NoError(t, err, "request %d", i+1)
	}

	_, err := svc.client.RequestOtp(t.Context(), email)
	require.ErrorIs(t, err, authsdk.ErrRateLimited)

	var oauthErr *authsdk.OAuth2Error
	require.True(t, errors.As(err, &oauthErr))
	require.Positive(t, oauthErr.RetryAfter, "Retry-After is set")
	require.Equal(t, service.DefaultOtpRateLimit, svc.mail.count(email), "no mail past the limit")
}

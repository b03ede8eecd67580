package auth_test

import (
	"net/url"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

// TestOAuthLogin tests the complete Google flow:
// 1. Initiate and inspect the consent URL
// 2. Complete with the callback code and state
// 3. Verify the state cannot be replayed
func TestOAuthLogin(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	started, err := svc.client.InitiateOAuth(t.Context(), "")
	require.NoError(t, err)
	require.NotEmpty(t, started.StateToken)
	require.False(t, started.ExpiresAt.IsZero())

	u, err := url.Parse(started.AuthorizationURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, started.StateToken, q.Get("state"))
	require.Equal(t, redirectURI, q.Get("redirect_uri"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))

	session, login, err := svc.client.CompleteOAuth(t.Context(), "good-code", started.StateToken)
	require.NoError(t, err)
	assertTokenPair(t, &login.TokenPairResponse)
	require.True(t, login.IsNew)
	require.Equal(t, googleEmail, login.User.Email)
	require.Equal(t, q.Get("code_challenge"), cryptox.PKCEChallengeS256(svc.google.lastVerifier()),
		"the exchange carries the verifier behind the challenge")

	resp, err := svc.client.ValidateToken(t.Context(), session.AccessToken())
	require.NoError(t, err)
	require.True(t, resp.Valid)
	require.Equal(t, googleSubject, resp.Claims.IdentityID)

	_, _, err = svc.client.CompleteOAuth(t.Context(), "good-code", started.StateToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant, "state is single use")

	t.Logf("OAuth login successful for user %s", login.User.ID)
}

// TestOAuthRejections verifies forged state and bad codes fail the same way.
func TestOAuthRejections(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	t.Run("unknown state", func(t *testing.T) {
		_, _, err := svc.client.CompleteOAuth(t.Context(), "good-code", "forged-state")
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
	})

	t.Run("bad code", func(t *testing.T) {
		started, err := svc.client.InitiateOAuth(t.Context(), "")
		require.NoError(t, err)
		_, _, err = svc.client.CompleteOAuth(t.Context(), "bad-code", started.StateToken)
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, _, err := svc.client.CompleteOAuth(t.Context(), "", "")
		require.ErrorIs(t, err, authsdk.ErrInvalidRequest)
	})
}

// TestOAuthAndOtpShareAccount verifies a Google sign-in and an email code
// for the same verified address land on one user.
func TestOAuthAndOtpShareAccount(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	started, err := svc.client.InitiateOAuth(t.Context(), "")
	require.NoError(t, err)
	_, login, err := svc.client.CompleteOAuth(t.Context(), "good-code", started.StateToken)
	require.NoError(t, err)

	_, verified := loginWithOtp(t, svc, googleEmail)
	require.False(t, verified.IsNew)
	require.Equal(t, login.User.ID, verified.User.ID)
}

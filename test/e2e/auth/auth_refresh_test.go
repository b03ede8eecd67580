package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRefreshRotation tests the complete flow:
// 1. Sign in with an email code
// 2. Refresh the pair
// 3. Verify the old refresh token and its access token are dead
// 4. Verify the new pair works
func TestRefreshRotation(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	session, _ := loginWithOtp(t, svc, uniqueEmail(t, "rotate"))
	oldAccessToken := session.AccessToken()
	oldRefreshToken := session.RefreshToken()

	pair, err := svc.client.RefreshToken(t.Context(), oldRefreshToken)
	require.NoError(t, err)
	assertTokenPair(t, pair)

	require.NotEqual(t, oldAccessToken, pair.AccessToken, "Access token should be rotated")
	require.NotEqual(t, oldRefreshToken, pair.RefreshToken, "Refresh token should be rotated")

	_, err = svc.client.RefreshToken(t.Context(), oldRefreshToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant, "a used refresh token must not work twice")

	old, err := svc.client.ValidateToken(t.Context(), oldAccessToken)
	require.NoError(t, err)
	require.True(t, old.Valid, "validation is stateless")
	require.False(t, old.SessionActive, "but the rotated session is gone")

	current, err := svc.client.ValidateToken(t.Context(), pair.AccessToken)
	require.NoError(t, err)
	require.True(t, current.Valid)
	require.True(t, current.SessionActive)
	require.NotNil(t, current.Claims)
	require.Equal(t, "access", current.Claims.TokenType)
	require.Equal(t, current.SessionID, current.Claims.SessionID)

	t.Logf("Refresh rotated session to %s", current.SessionID)
}

// TestRenewAccessToken verifies an access-only renewal keeps the session
// and leaves the refresh token usable.
func TestRenewAccessToken(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	session, _ := loginWithOtp(t, svc, uniqueEmail(t, "renew"))

	renewed, err := svc.client.RenewAccessToken(t.Context(), session.RefreshToken())
	require.NoError(t, err)
	require.NotEmpty(t, renewed.AccessToken)
	require.Equal(t, "Bearer", renewed.TokenType)

	v, err := svc.client.ValidateToken(t.Context(), renewed.AccessToken)
	require.NoError(t, err)
	require.True(t, v.SessionActive)
	require.Equal(t, renewed.SessionID, v.SessionID)

	pair, err := svc.client.RefreshToken(t.Context(), session.RefreshToken())
	require.NoError(t, err, "renewal does not rotate the refresh token")
	assertTokenPair(t, pair)

	t.Logf("Renewed access token for session %s", renewed.SessionID)
}

// TestSessionRefreshKeepsWorking verifies the SDK session swaps in the
// rotated pair and stays usable.
func TestSessionRefreshKeepsWorking(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	session, _ := loginWithOtp(t, svc, uniqueEmail(t, "sdk"))
	before := session.RefreshToken()

	require.NoError(t, session.Refresh(t.Context()))
	require.NotEqual(t, before, session.RefreshToken())

	_, err := session.GetProfile(t.Context())
	require.NoError(t, err)

	restored, err := svc.client.AuthenticateWithRefreshToken(t.Context(), session.RefreshToken())
	require.NoError(t, err)
	_, err = restored.GetProfile(t.Context())
	require.NoError(t, err)
}

// TestRefreshRejectsGarbage verifies a broken or wrong-typed token is an
// invalid grant.
func TestRefreshRejectsGarbage(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	session, _ := loginWithOtp(t, svc, uniqueEmail(t, "garbage"))

	tests := []struct {
		name  string
		token string
	}{
		{"not a jwt", "definitely-not-a-token"},
		{"access token", session.AccessToken()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.client.RefreshToken(t.Context(), tt.token)
			require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
		})
	}

	_, err := svc.client.RefreshToken(t.Context(), "")
	require.ErrorIs(t, err, authsdk.ErrInvalidRequest)
}

// TestValidateGarbageToken verifies validation answers 200 with valid false.
func TestValidateGarbageToken(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	resp, err := svc.client.ValidateToken(t.Context(), "not.a.jwt")
	require.NoError(t, err)
	require.False(t, resp.Valid)
	require.Nil(t, resp.Claims)
}

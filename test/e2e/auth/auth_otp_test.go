package auth_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestOtpLogin verifies a first sign-in by email code creates the account
// and a second one reuses it.
func TestOtpLogin(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	email := uniqueEmail(t, "ada")

	session, first := loginWithOtp(t, svc, email)
	assertTokenPair(t, first.TokenPairResponse)
	require.True(t, first.IsNew)
	require.NotNil(t, first.User)
	require.Equal(t, email, first.User.Email)

	profile, err := session.GetProfile(t.Context())
	require.NoError(t, err)
	require.Equal(t, first.User.ID, profile.ID)
	require.NotNil(t, profile.LastLoginAt)

	_, second := loginWithOtp(t, svc, email)
	require.False(t, second.IsNew)
	require.Equal(t, first.User.ID, second.User.ID)

	t.Logf("OTP login successful for user %s", first.User.ID)
}

// TestOtpEmailIsCaseInsensitive verifies codes are issued and checked
// against the normalized address.
func TestOtpEmailIsCaseInsensitive(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	email := uniqueEmail(t, "mixed")

	_, err := svc.client.RequestOtp(t.Context(), "  "+strings.ToUpper(email)+" ")
	require.NoError(t, err)

	session, err := svc.client.LoginWithOtp(t.Context(), email, svc.mail.lastCode(t, email))
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken())
}

// TestOtpWrongCodeExhaustsAttempts verifies wrong codes count down and a
// spent challenge refuses even the right code.
func TestOtpWrongCodeExhaustsAttempts(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	email := uniqueEmail(t, "typo")

	req, err := svc.client.RequestOtp(t.Context(), email)
	require.NoError(t, err)
	code := svc.mail.lastCode(t, email)

	for want := req.AttemptsAllowed - 1; want >= 0; want-- {
		session, resp, err := svc.client.VerifyOtp(t.Context(), email, wrongCode(code))
		require.NoError(t, err, "a wrong code is not a transport error")
		require.Nil(t, session)
		require.False(t, resp.Success)
		require.Nil(t, resp.TokenPairResponse)
		require.Equal(t, want, resp.AttemptsRemaining)
	}

	_, err = svc.client.LoginWithOtp(t.Context(), email, code)
	require.ErrorIs(t, err, authsdk.ErrOtpRejected)

	t.Logf("Challenge locked after %d attempts", req.AttemptsAllowed)
}

// TestOtpCodeIsSingleUse verifies a verified code cannot sign in twice.
func TestOtpCodeIsSingleUse(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	email := uniqueEmail(t, "once")
	loginWithOtp(t, svc, email)

	_, resp, err := svc.client.VerifyOtp(t.Context(), email, svc.mail.lastCode(t, email))
	require.NoError(t, err)
	require.False(t, resp.Success)
}

// TestOtpNewCodeReplacesOld verifies only the latest code works.
func TestOtpNewCodeReplacesOld(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	email := uniqueEmail(t, "again")

	_, err := svc.client.RequestOtp(t.Context(), email)
	require.NoError(t, err)
	first := svc.mail.lastCode(t, email)

	_, err = svc.client.RequestOtp(t.Context(), email)
	require.NoError(t, err)
	second := svc.mail.lastCode(t, email)
	require.Equal(t, 2, svc.mail.count(email))

	if first != second {
		_, resp, err := svc.client.VerifyOtp(t.Context(), email, first)
		require.NoError(t, err)
		require.False(t, resp.Success)
	}

	_, err = svc.client.LoginWithOtp(t.Context(), email, second)
	require.NoError(t, err)
}

// TestOtpInvalidEmail verifies malformed addresses are rejected before any
// mail is sent.
func TestOtpInvalidEmail(t *testing.T) {
	svc, cleanup := setupAuthService(t)
	defer cleanup()

	for _, email := range []string{"", "not-an-email", "@example.com"} {
		_, err := svc.client.RequestOtp(t.Context(), email)
		require.ErrorIs(t, err, authsdk.ErrInvalidRequest, "email %q", email)
	}
}

/*
Package authsdk provides a client SDK for the accounts authentication service.

# Overview

The service signs users in with a Google account or an emailed one-time code
and hands out a short-lived JWT access token plus a single-use refresh
token. The SDK wraps the HTTP API and keeps a Session's tokens fresh.

# SDKClient vs Session

  - SDKClient: unauthenticated operations; creates Sessions from logins
  - Session: authenticated operations with automatic token refresh

Email one-time code:

	client := authsdk.NewSDKClient("https://auth.example.com")

	if _, err := client.RequestOtp(ctx, "ada@example.com"); err != nil {
		return err
	}
	session, err := client.LoginWithOtp(ctx, "ada@example.com", codeFromEmail)

Google sign-in:

	init, err := client.InitiateOAuth(ctx, "")
	// redirect the user to init.AuthorizationURL, then on the callback:
	session, login, err := client.CompleteOAuth(ctx, code, state)

# Automatic Token Refresh

Every Session method calls getValidToken, which refreshes the access token
when it is within 30 seconds of expiry. Refresh rotates the session: the old
refresh token is consumed and both tokens are replaced. Reusing a consumed
refresh token fails with ErrInvalidGrant.

# Error Handling

Non-2xx replies are returned as *OAuth2Error. The predefined values match
with errors.Is:

	_, err := client.RefreshToken(ctx, stale)
	if errors.Is(err, authsdk.ErrInvalidGrant) {
		// sign in again
	}

A 429 carries RetryAfter, parsed from the Retry-After header.

# Thread Safety

Sessions are safe for concurrent use. A refresh holds the session's write
lock, so concurrent requests never present the same refresh token twice.
*/
package authsdk

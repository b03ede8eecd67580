package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// InitiateOAuth starts a provider sign-in. Send the user to
// AuthorizationURL and pass the code and state from the callback to
// CompleteOAuth.
func (c *SDKClient) InitiateOAuth(ctx context.Context, redirectURI string) (*InitiateOAuthResponse, error) {
	var out InitiateOAuthResponse
	if err := c.postJSON(ctx, "/v1/auth/oauth/initiate", InitiateOAuthRequest{RedirectURI: redirectURI}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteOAuth finishes a provider sign-in and returns a session.
func (c *SDKClient) CompleteOAuth(ctx context.Context, code, state string) (*Session, *LoginResponse, error) {
	var out LoginResponse
	if err := c.postJSON(ctx, "/v1/auth/oauth/complete", CompleteOAuthRequest{Code: code, State: state}, &out); err != nil {
		return nil, nil, err
	}
	return c.sessionFromPair(out.TokenPairResponse), &out, nil
}

// RequestOtp asks the service to email a sign-in code.
func (c *SDKClient) RequestOtp(ctx context.Context, email string) (*RequestOtpResponse, error) {
	var out RequestOtpResponse
	if err := c.postJSON(ctx, "/v1/auth/otp/request", RequestOtpRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ErrOtpRejected is returned by LoginWithOtp when the code did not verify.
var ErrOtpRejected = errors.New("authsdk: otp code rejected")

// VerifyOtp checks a code. A wrong code is not an error: the response has
// Success false and the session is nil.
func (c *SDKClient) VerifyOtp(ctx context.Context, email, code string) (*Session, *VerifyOtpResponse, error) {
	var out VerifyOtpResponse
	if err := c.postJSON(ctx, "/v1/auth/otp/verify", VerifyOtpRequest{Email: email, Code: code}, &out); err != nil {
		return nil, nil, err
	}
	if !out.Success || out.TokenPairResponse == nil {
		return nil, &out, nil
	}
	return c.sessionFromPair(*out.TokenPairResponse), &out, nil
}

// LoginWithOtp is VerifyOtp that treats a rejected code as ErrOtpRejected.
func (c *SDKClient) LoginWithOtp(ctx context.Context, email, code string) (*Session, error) {
	sess, out, err := c.VerifyOtp(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %d attempts remaining", ErrOtpRejected, out.AttemptsRemaining)
	}
	return sess, nil
}

// RefreshToken exchanges a refresh token for a new pair. The presented
// token is consumed; reusing it fails with ErrInvalidGrant.
func (c *SDKClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenPairResponse, error) {
	var out TokenPairResponse
	if err := c.postJSON(ctx, "/v1/auth/token/refresh", RefreshTokenRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenewAccessToken returns a new access token for the session behind
// refreshToken. Unlike RefreshToken the refresh token is not rotated.
func (c *SDKClient) RenewAccessToken(ctx context.Context, refreshToken string) (*AccessTokenResponse, error) {
	var out AccessTokenResponse
	if err := c.postJSON(ctx, "/v1/auth/token/access", RefreshTokenRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthenticateWithRefreshToken creates a session from a stored refresh
// token. The token is rotated in the process.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	pair, err := c.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return c.sessionFromPair(*pair), nil
}

// ValidateToken asks the service whether an access token is valid and
// whether its session is still live.
func (c *SDKClient) ValidateToken(ctx context.Context, accessToken string) (*ValidateTokenResponse, error) {
	var out ValidateTokenResponse
	if err := c.postJSON(ctx, "/v1/auth/token/validate", ValidateTokenRequest{AccessToken: accessToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLiveness calls GET /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls GET /readyz. A degraded service returns its checks
// along with an *OAuth2Error carrying status 503.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out HealthResponse
	if jsonErr := json.Unmarshal(body, &out); jsonErr != nil || out.Status == "" {
		if apiErr := parseErrorResponse(resp, body); apiErr != nil {
			return nil, apiErr
		}
		return nil, errors.New("authsdk: unexpected health response")
	}
	if resp.StatusCode != http.StatusOK {
		return &out, NewOAuth2Error(resp.StatusCode, ErrorCodeTemporarilyUnavailable, "service "+out.Status)
	}
	return &out, nil
}

package authsdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the JSON body of an error reply.
// Client code should use the OAuth2Error type from errors.go instead.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// User & Token Types
// ============================================================================

// User is the public view of an account.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	PictureURL  string     `json:"picture_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// TokenPairResponse is returned by every login and by refresh.
type TokenPairResponse struct {
	// AccessToken is the short-lived JWT sent as a Bearer token
	AccessToken string `json:"access_token"`

	// RefreshToken is single use; refreshing returns a new one
	RefreshToken string `json:"refresh_token"`

	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in"`
}

// LoginResponse is the result of a completed OAuth sign-in.
type LoginResponse struct {
	TokenPairResponse

	User  User `json:"user"`
	IsNew bool `json:"is_new"`
}

// ============================================================================
// OAuth Types
// ============================================================================

type InitiateOAuthRequest struct {
	// RedirectURI defaults to the server's configured callback
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type InitiateOAuthResponse struct {
	AuthorizationURL string    `json:"authorization_url"`
	StateToken       string    `json:"state_token"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type CompleteOAuthRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// ============================================================================
// OTP Types
// ============================================================================

type RequestOtpRequest struct {
	Email string `json:"email"`
}

// RequestOtpResponse has the same shape whether or not the address has an
// account.
type RequestOtpResponse struct {
	Accepted        bool      `json:"accepted"`
	Message         string    `json:"message"`
	ExpiresAt       time.Time `json:"expires_at"`
	AttemptsAllowed int       `json:"attempts_allowed"`
}

type VerifyOtpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyOtpResponse carries tokens and the user only when Success is true.
// A wrong code is a 200 with Success false and the attempts left.
type VerifyOtpResponse struct {
	Success bool `json:"success"`

	*TokenPairResponse

	AttemptsRemaining int   `json:"attempts_remaining"`
	IsNew             bool  `json:"is_new"`
	User              *User `json:"user,omitempty"`
}

// ============================================================================
// Token Types
// ============================================================================

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ValidateTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// TokenClaims is the JSON view of a validated access token.
type TokenClaims struct {
	Subject    string   `json:"sub"`
	Email      string   `json:"email,omitempty"`
	Name       string   `json:"name,omitempty"`
	IdentityID string   `json:"identity_id,omitempty"`
	SessionID  string   `json:"sid"`
	TokenType  string   `json:"token_type"`
	Issuer     string   `json:"iss"`
	Audience   []string `json:"aud,omitempty"`
	JTI        string   `json:"jti"`
	IssuedAt   int64    `json:"iat"`
	ExpiresAt  int64    `json:"exp"`
}

// AccessTokenResponse is a renewed access token for an unchanged session.
type AccessTokenResponse struct {
	AccessToken     string    `json:"access_token"`
	TokenType       string    `json:"token_type"`
	ExpiresIn       int64     `json:"expires_in"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	SessionID       string    `json:"session_id"`
}

// ValidateTokenResponse is always returned with 200; an invalid token only
// sets Valid to false. Valid is the signature and expiry check alone;
// SessionActive reports whether the session behind it is still live.
type ValidateTokenResponse struct {
	Valid         bool         `json:"valid"`
	SessionActive bool         `json:"session_active"`
	Claims        *TokenClaims `json:"claims,omitempty"`
	SessionID     string       `json:"session_id,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

// ============================================================================
// Session Types
// ============================================================================

type LogoutResponse struct {
	Success bool `json:"success"`
}

type LogoutAllResponse struct {
	Success      bool `json:"success"`
	RevokedCount int  `json:"revoked_count"`
}

type ProfileResponse struct {
	User User `json:"user"`
}

// SessionInfo describes one signed-in device.
type SessionInfo struct {
	SessionID      string    `json:"session_id"`
	UserAgent      string    `json:"user_agent,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`

	// Current marks the session of the token making the request.
	Current bool `json:"current"`
}

type SessionsResponse struct {
	Sessions    []SessionInfo `json:"sessions"`
	ActiveCount int64         `json:"active_count"`
}

type RevokeSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is how long the service has been running
	Uptime string `json:"uptime"`

	Version string `json:"version"`

	// Checks contains per-dependency status (readyz only)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
// Each field is "ok" or an error message.
type HealthChecks struct {
	Store string `json:"store"`
	Users string `json:"users"`
}

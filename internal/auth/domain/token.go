package domain

import "time"

// TokenPair is what a successful login or refresh returns. SessionID is the
// refresh token's jti and is kept out of the wire form.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"` // always "Bearer"
	ExpiresIn        int64     `json:"expires_in"` // seconds until the access token expires

	SessionID string `json:"-"`
}

// Profile is the denormalised user data embedded in token claims.
type Profile struct {
	UserID     string
	Email      string
	Name       string
	IdentityID string // external identity subject, e.g. the Google sub
}

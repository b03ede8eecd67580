package domain

import "time"

// Session is the server-side record of one refresh token. SessionKey is the
// refresh token's jti, so revoking the record revokes the token.
type Session struct {
	SessionKey         string    `json:"session_key"`
	UserID             string    `json:"user_id"`
	IdentityProviderID string    `json:"identity_provider_id,omitempty"`
	Email              string    `json:"email"`
	UserAgent          string    `json:"user_agent,omitempty"`
	IPAddress          string    `json:"ip_address,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// IsExpired reports whether the session has passed its expiry.
func (s Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

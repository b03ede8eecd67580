package domain

import "time"

// OAuthState binds an authorization redirect to its callback. It is stored
// once and consumed at most once.
type OAuthState struct {
	StateToken    string    `json:"state_token"`
	CSRFToken     string    `json:"csrf_token"`
	PKCEVerifier  string    `json:"pkce_verifier,omitempty"`
	PKCEChallenge string    `json:"pkce_challenge,omitempty"`
	RedirectURI   string    `json:"redirect_uri,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// IsExpired reports whether the state has passed its expiry.
func (s OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

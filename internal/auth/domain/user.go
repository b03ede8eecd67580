package domain

import "time"

// Identity providers known to the user directory.
const (
	ProviderGoogle = "google"
	ProviderEmail  = "email"
)

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	PictureURL  string     `json:"picture_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Identity is an external account (provider, subject) linked to a user.
type Identity struct {
	Provider   string
	Subject    string
	Email      string
	Name       string
	PictureURL string
}

// ProviderToken is what an identity provider returns for an authorization
// code. Only the access token is needed to fetch the profile.
type ProviderToken struct {
	AccessToken string
	IDToken     string
	TokenType   string
	ExpiresAt   time.Time
}

package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// refreshBuffer is subtracted from the access token lifetime so sessions
// refresh shortly before the server would reject the token.
const refreshBuffer = 30 * time.Second

// SDKClient is a client for the accounts authentication service.
// It provides access to unauthenticated operations and creates authenticated
// Sessions from successful logins.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent is sent on every request and recorded on new sessions.
	UserAgent string
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: "authsdk-go",
	}
}

// NewSessionFromTokens creates an authenticated session from tokens obtained
// earlier (e.g. restored from storage). The session refreshes automatically
// once the access token nears expiry.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, accessExpiresAt time.Time) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    accessExpiresAt.Add(-refreshBuffer),
	}
}

func (c *SDKClient) sessionFromPair(p TokenPairResponse) *Session {
	return c.NewSessionFromTokens(p.AccessToken, p.RefreshToken, p.AccessExpiresAt)
}

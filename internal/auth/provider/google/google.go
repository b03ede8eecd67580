// Package google implements the OAuth 2.0 authorization code flow with PKCE
// against Google's endpoints.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
)

const (
	DefaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenURL    = "https://oauth2.googleapis.com/token"
	DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	defaultTimeout = 30 * time.Second

	// maxResponseBytes caps token and userinfo bodies.
	maxResponseBytes = 1 << 20
)

var DefaultScopes = []string{"openid", "email", "profile"}

var (
	ErrExchangeFailed     = errors.New("google: code exchange failed")
	ErrProfileFailed      = errors.New("google: userinfo request failed")
	ErrUnverifiedEmail    = errors.New("google: email address is not verified")
	ErrMissingSubject     = errors.New("google: userinfo has no subject")
	ErrMissingAccessToken = errors.New("google: token response has no access token")
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// Endpoint overrides, for tests.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
	Now        func() time.Time
}

type Provider struct {
	cfg Config
}

func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google: client id and secret are required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if _, err := url.Parse(cfg.AuthURL); err != nil {
		return nil, fmt.Errorf("google: invalid auth url: %w", err)
	}
	return &Provider{cfg: cfg}, nil
}

// AuthorizationURL builds the consent URL. An empty redirectURI falls back
// to the configured one.
func (p *Provider) AuthorizationURL(state, codeChallenge, redirectURI string) string {
	if redirectURI == "" {
		redirectURI = p.cfg.RedirectURI
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
	q.Set("access_type", "online")
	q.Set("prompt", "select_account")
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "S256")
	}

	u, _ := url.Parse(p.cfg.AuthURL) // validated in New
	u.RawQuery = q.Encode()
	return u.String()
}

// ExchangeCode trades an authorization code for tokens. The redirect URI
// must match the one used for AuthorizationURL.
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (domain.ProviderToken, error) {
	if redirectURI == "" {
		redirectURI = p.cfg.RedirectURI
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.ProviderToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return domain.ProviderToken{}, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ProviderToken{}, fmt.Errorf("%w: %s", ErrExchangeFailed, describeError(resp))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return domain.ProviderToken{}, fmt.Errorf("%w: decode: %w", ErrExchangeFailed, err)
	}
	if payload.AccessToken == "" {
		return domain.ProviderToken{}, ErrMissingAccessToken
	}

	tok := domain.ProviderToken{
		AccessToken: payload.AccessToken,
		IDToken:     payload.IDToken,
		TokenType:   payload.TokenType,
	}
	if payload.ExpiresIn > 0 {
		tok.ExpiresAt = p.cfg.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// FetchProfile reads the OpenID userinfo for the token's account. Accounts
// whose email Google has not verified are refused, since users are linked
// across providers by email.
func (p *Provider) FetchProfile(ctx context.Context, tok domain.ProviderToken) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrProfileFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, fmt.Errorf("%w: %s", ErrProfileFailed, describeError(resp))
	}

	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: decode: %w", ErrProfileFailed, err)
	}
	if payload.Sub == "" {
		return domain.Identity{}, ErrMissingSubject
	}
	if payload.Email == "" || !payload.EmailVerified {
		return domain.Identity{}, ErrUnverifiedEmail
	}

	return domain.Identity{
		Provider:   domain.ProviderGoogle,
		Subject:    payload.Sub,
		Email:      payload.Email,
		Name:       firstNonEmpty(payload.Name, payload.Email),
		PictureURL: payload.Picture,
	}, nil
}

// describeError summarises an OAuth error body without echoing tokens.
func describeError(resp *http.Response) string {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body)
	if body.Error == "" {
		return resp.Status
	}
	if body.ErrorDescription == "" {
		return fmt.Sprintf("%s: %s", resp.Status, body.Error)
	}
	return fmt.Sprintf("%s: %s (%s)", resp.Status, body.Error, body.ErrorDescription)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

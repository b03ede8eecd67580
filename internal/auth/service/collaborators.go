package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
)

// IdentityProvider is an external OAuth 2.0 provider such as Google.
type IdentityProvider interface {
	// AuthorizationURL builds the consent screen redirect. codeChallenge is
	// empty when PKCE is not in use.
	AuthorizationURL(state, codeChallenge, redirectURI string) string

	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (domain.ProviderToken, error)
	FetchProfile(ctx context.Context, token domain.ProviderToken) (domain.Identity, error)
}

// EmailSender delivers plain text mail.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// UserDirectory owns users and their linked identities.
type UserDirectory interface {
	// FindOrCreateByIdentity returns the linked user, creating one when
	// nothing matches. created reports a new user row.
	FindOrCreateByIdentity(ctx context.Context, ident domain.Identity) (user domain.User, created bool, err error)

	FindByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	TouchLogin(ctx context.Context, userID string, at time.Time) error

	Ping(ctx context.Context) error
}

package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes and validation leeway. Services override these
// from configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = time.Hour

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultLeeway is the clock skew tolerated on exp/nbf/iat.
	DefaultLeeway = 60 * time.Second
)

// jtiBytes is the amount of randomness in every "jti" (128 bits).
const jtiBytes = 16

// Claims is the claim set carried by both access and refresh tokens. The
// profile fields are denormalised so downstream services never need a user
// lookup to know who is calling.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType discriminates access from refresh tokens. Always checked.
	TokenType TokenType `json:"token_type"`

	// SID is the session key, which is the jti of the refresh token that
	// started the session. Access tokens inherit it.
	SID string `json:"sid,omitempty"`

	// Email of the authenticated user
	Email string `json:"email,omitempty"`

	// Name is the display name for the user
	Name string `json:"name,omitempty"`

	// IdentityID is the external identity provider subject (e.g. Google sub)
	IdentityID string `json:"idp_id,omitempty"`
}

// ClaimsParams holds the inputs needed to build a claim set.
type ClaimsParams struct {
	Subject    string
	SID        string
	Email      string
	Name       string
	IdentityID string

	Issuer   string
	Audience []string
	TTL      time.Duration
	Now      time.Time
}

// NewClaims builds a claim set of the given type with a fresh jti.
func NewClaims(tt TokenType, p ClaimsParams) Claims {
	now := p.Now.UTC().Truncate(time.Second)
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
			ID:        NewJTI(),
		},
		TokenType:  tt,
		SID:        p.SID,
		Email:      p.Email,
		Name:       p.Name,
		IdentityID: p.IdentityID,
	}
}

// NewJTI returns a URL-safe 128-bit random identifier for the "jti" claim.
func NewJTI() string {
	var b [jtiBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic("jwtx: failed to read random bytes: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ExpiresAtTime returns exp as a time, or the zero time when exp is unset.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ValidateTokenType reports ErrWrongTokenType when the token is a valid
// type other than want, and ErrMalformed when it carries no known type.
func (c *Claims) ValidateTokenType(want TokenType) error {
	if !want.Valid() {
		return ErrInvalidClaim
	}

	switch c.TokenType {
	case TokenTypeAccess, TokenTypeRefresh:
		if c.TokenType != want {
			return ErrWrongTokenType
		}
		return nil
	default:
		return ErrMalformed
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

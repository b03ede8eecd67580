package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// TokenConfig controls issued token lifetimes and the claims checked on
// validation.
type TokenConfig struct {
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration

	// Now overrides the clock for both issuing and validating.
	Now func() time.Time
}

// VerifyOptions returns the verifier expectations matching this config.
func (c TokenConfig) VerifyOptions() jwtx.VerifyOptions {
	return jwtx.VerifyOptions{
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Leeway:   c.Leeway,
		Now:      c.Now,
	}
}

// TokenService issues and validates access/refresh JWT pairs. It has no
// side effects; sessions are registered by the caller.
type TokenService struct {
	signer   jwtx.Signer
	verifier jwtx.Verifier
	cfg      TokenConfig
}

// NewTokenService pairs a signer with the verifier for the same key. The
// verifier should be built from cfg.VerifyOptions().
func NewTokenService(signer jwtx.Signer, verifier jwtx.Verifier, cfg TokenConfig) (*TokenService, error) {
	if signer == nil || verifier == nil {
		return nil, fmt.Errorf("%w: token signer and verifier are required", ErrConfiguration)
	}
	if err := signer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenService{signer: signer, verifier: verifier, cfg: cfg}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func (s *TokenService) params(p domain.Profile, sid string, ttl time.Duration, now time.Time) jwtx.ClaimsParams {
	return jwtx.ClaimsParams{
		Subject:    p.UserID,
		SID:        sid,
		Email:      p.Email,
		Name:       p.Name,
		IdentityID: p.IdentityID,
		Issuer:     s.cfg.Issuer,
		Audience:   s.cfg.Audience,
		TTL:        ttl,
		Now:        now,
	}
}

// IssuePair signs a new access and refresh token. Both carry the refresh
// token's jti as sid, which becomes the session key.
func (s *TokenService) IssuePair(profile domain.Profile) (domain.TokenPair, error) {
	if profile.UserID == "" {
		return domain.TokenPair{}, errors.New("issue pair: profile has no user id")
	}
	now := s.cfg.Now()

	refresh := jwtx.NewClaims(jwtx.TokenTypeRefresh, s.params(profile, "", s.cfg.RefreshTTL, now))
	refresh.SID = refresh.ID

	access := jwtx.NewClaims(jwtx.TokenTypeAccess, s.params(profile, refresh.ID, s.cfg.AccessTTL, now))

	accessToken, err := s.signer.Sign(access)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.signer.Sign(refresh)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  access.ExpiresAtTime(),
		RefreshExpiresAt: refresh.ExpiresAtTime(),
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.cfg.AccessTTL / time.Second),
		SessionID:        refresh.ID,
	}, nil
}

// Validate checks signature, issuer, audience, expiry and token type.
func (s *TokenService) Validate(token string, want jwtx.TokenType) (jwtx.Claims, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, mapTokenErr(err)
	}
	if err := claims.ValidateTokenType(want); err != nil {
		return jwtx.Claims{}, mapTokenErr(err)
	}
	if claims.Subject == "" || claims.ID == "" || claims.SID == "" {
		return jwtx.Claims{}, fmt.Errorf("%w: missing sub, jti or sid", ErrMalformedToken)
	}
	return claims, nil
}

func (s *TokenService) ValidateAccess(token string) (jwtx.Claims, error) {
	return s.Validate(token, jwtx.TokenTypeAccess)
}

func (s *TokenService) ValidateRefresh(token string) (jwtx.Claims, error) {
	return s.Validate(token, jwtx.TokenTypeRefresh)
}

// RotateAccessToken signs a fresh access token for an already validated
// refresh token. The new token keeps the session id.
func (s *TokenService) RotateAccessToken(refresh jwtx.Claims, profile domain.Profile) (string, time.Time, error) {
	if refresh.TokenType != jwtx.TokenTypeRefresh {
		return "", time.Time{}, ErrWrongTokenType
	}
	if profile.UserID == "" {
		profile = ProfileFromClaims(refresh)
	}

	access := jwtx.NewClaims(jwtx.TokenTypeAccess, s.params(profile, refresh.SID, s.cfg.AccessTTL, s.cfg.Now()))
	token, err := s.signer.Sign(access)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, access.ExpiresAtTime(), nil
}

// ProfileFromClaims recovers the denormalised profile from a claim set.
func ProfileFromClaims(c jwtx.Claims) domain.Profile {
	return domain.Profile{
		UserID:     c.Subject,
		Email:      c.Email,
		Name:       c.Name,
		IdentityID: c.IdentityID,
	}
}

func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return ErrExpiredToken
	case errors.Is(err, jwtx.ErrWrongTokenType):
		return ErrWrongTokenType
	case errors.Is(err, jwtx.ErrInvalidSig),
		errors.Is(err, jwtx.ErrAlgMismatch),
		errors.Is(err, jwtx.ErrIssuer),
		errors.Is(err, jwtx.ErrAudience):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// OtpEmailSubject is the subject line of the sign-in code email.
const OtpEmailSubject = "Your sign-in code"

// otpAcceptedMessage is returned whether or not an account exists for the
// address.
const otpAcceptedMessage = "If the address can receive email, a sign-in code is on its way."

// ClientInfo describes the device a session is created from.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// OAuthInitiation is what the client needs to send the user to the
// provider's consent screen.
type OAuthInitiation struct {
	AuthorizationURL string
	StateToken       string
	ExpiresAt        time.Time
}

// LoginResult is a completed sign-in.
type LoginResult struct {
	Pair  domain.TokenPair
	User  domain.User
	IsNew bool
}

type OtpRequestResult struct {
	Accepted        bool
	Message         string
	ExpiresAt       time.Time
	AttemptsAllowed int
}

// OtpLoginResult carries the verification outcome and, on success, the
// login.
type OtpLoginResult struct {
	Verification domain.OtpVerification
	Login        *LoginResult
}

// TokenValidation is the outcome of ValidateToken. Claims is set whenever
// Valid is.
type TokenValidation struct {
	Valid         bool
	SessionActive bool
	Claims        *jwtx.Claims
	SessionID     string
	ExpiresAt     time.Time
}

// AuthService implements the authentication RPCs on top of the token,
// session, OTP and OAuth state components.
type AuthService struct {
	Tokens   *TokenService
	Sessions *SessionStore
	Otps     *OtpChallengeStore
	States   *OAuthStateCache
	Users    UserDirectory
	Mailer   EmailSender

	// Provider may be nil when Google sign-in is not configured.
	Provider IdentityProvider

	// DefaultRedirectURI is used when InitiateOAuth gets none.
	DefaultRedirectURI string

	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// InitiateOAuth stores a PKCE-bound state and returns the consent URL.
func (s *AuthService) InitiateOAuth(ctx context.Context, redirectURI string) (OAuthInitiation, error) {
	if s.Provider == nil {
		return OAuthInitiation{}, fmt.Errorf("%w: no identity provider configured", ErrConfiguration)
	}
	if redirectURI == "" {
		redirectURI = s.DefaultRedirectURI
	}

	state, err := s.States.Issue(ctx, redirectURI, true)
	if err != nil {
		return OAuthInitiation{}, err
	}

	return OAuthInitiation{
		AuthorizationURL: s.Provider.AuthorizationURL(state.StateToken, state.PKCEChallenge, redirectURI),
		StateToken:       state.StateToken,
		ExpiresAt:        state.ExpiresAt,
	}, nil
}

// CompleteOAuth consumes the state, exchanges the code and signs the user
// in. Any state failure reads as invalid credentials.
func (s *AuthService) CompleteOAuth(ctx context.Context, code, stateToken string, client ClientInfo) (LoginResult, error) {
	if s.Provider == nil {
		return LoginResult{}, fmt.Errorf("%w: no identity provider configured", ErrConfiguration)
	}
	l := slogx.FromContext(ctx)

	if code == "" || stateToken == "" {
		return LoginResult{}, fmt.Errorf("%w: code and state are required", ErrInvalidRequest)
	}

	state, err := s.States.ConsumeOnce(ctx, stateToken)
	if errors.Is(err, ErrNotFound) {
		l.Warn("oauth state missing, expired or replayed")
		return LoginResult{}, fmt.Errorf("%w: unknown oauth state", ErrInvalidCredentials)
	}
	if err != nil {
		return LoginResult{}, err
	}

	token, err := s.Provider.ExchangeCode(ctx, code, state.PKCEVerifier, state.RedirectURI)
	if err != nil {
		l.Warn("oauth code exchange failed", "error", err)
		return LoginResult{}, fmt.Errorf("%w: code exchange failed", ErrInvalidCredentials)
	}

	ident, err := s.Provider.FetchProfile(ctx, token)
	if err != nil {
		return LoginResult{}, fmt.Errorf("fetch identity profile: %w", err)
	}
	ident.Email = NormalizeEmail(ident.Email)

	user, created, err := s.Users.FindOrCreateByIdentity(ctx, ident)
	if err != nil {
		return LoginResult{}, fmt.Errorf("find or create user: %w", err)
	}

	pair, err := s.startSession(ctx, user, ident.Subject, client)
	if err != nil {
		return LoginResult{}, err
	}

	l.Info("user signed in", "user_id", user.ID, "provider", ident.Provider, "is_new", created)
	return LoginResult{Pair: pair, User: user, IsNew: created}, nil
}

// RequestOtp emails a fresh code. The response does not reveal whether an
// account exists.
func (s *AuthService) RequestOtp(ctx context.Context, email string) (OtpRequestResult, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return OtpRequestResult{}, fmt.Errorf("%w: invalid email address", ErrInvalidRequest)
	}

	var linkedUserID string
	user, err := s.Users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		linkedUserID = user.ID
	case errors.Is(mapStoreErr(err), ErrNotFound):
	default:
		return OtpRequestResult{}, fmt.Errorf("look up user by email: %w", mapStoreErr(err))
	}

	code, challenge, err := s.Otps.Issue(ctx, email, linkedUserID)
	if err != nil {
		return OtpRequestResult{}, err
	}

	body := otpEmailBody(code, challenge.ExpiresAt.Sub(challenge.CreatedAt))
	if err := s.Mailer.Send(ctx, email, OtpEmailSubject, body); err != nil {
		slogx.FromContext(ctx).Error("failed to send otp email", "email", email, "error", err)
		return OtpRequestResult{}, fmt.Errorf("send otp email: %w", err)
	}

	return OtpRequestResult{
		Accepted:        true,
		Message:         otpAcceptedMessage,
		ExpiresAt:       challenge.ExpiresAt,
		AttemptsAllowed: challenge.MaxAttempts,
	}, nil
}

// VerifyOtp checks the code and, on success, signs the user in, creating
// the account on first login.
func (s *AuthService) VerifyOtp(ctx context.Context, email, code string, client ClientInfo) (OtpLoginResult, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) || strings.TrimSpace(code) == "" {
		return OtpLoginResult{}, fmt.Errorf("%w: email and code are required", ErrInvalidRequest)
	}

	v, err := s.Otps.Verify(ctx, email, code)
	if err != nil {
		return OtpLoginResult{}, err
	}
	if !v.Success {
		return OtpLoginResult{Verification: v}, nil
	}

	local, _, _ := strings.Cut(email, "@")
	user, _, err := s.Users.FindOrCreateByIdentity(ctx, domain.Identity{
		Provider: domain.ProviderEmail,
		Subject:  email,
		Email:    email,
		Name:     local,
	})
	if err != nil {
		return OtpLoginResult{}, fmt.Errorf("find or create user: %w", err)
	}

	pair, err := s.startSession(ctx, user, email, client)
	if err != nil {
		return OtpLoginResult{}, err
	}

	slogx.FromContext(ctx).Info("user signed in",
		"user_id", user.ID,
		"provider", domain.ProviderEmail,
		"is_new", v.IsNewIdentity,
	)
	return OtpLoginResult{
		Verification: v,
		Login:        &LoginResult{Pair: pair, User: user, IsNew: v.IsNewIdentity},
	}, nil
}

// RefreshToken rotates a session: a new pair with a new session replaces
// the one behind the presented refresh token. The new session is registered
// before the old one is consumed, so a failure part way leaves the old
// refresh token usable. A revoked or already rotated session reads as
// ErrNotFound; losing a concurrent rotation reads as ErrReplayOrAlreadyUsed.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string, client ClientInfo) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, sess, err := s.liveRefreshSession(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	user, err := s.refreshUser(ctx, claims.Subject)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if client.UserAgent == "" {
		client.UserAgent = sess.UserAgent
	}
	if client.IPAddress == "" {
		client.IPAddress = sess.IPAddress
	}

	pair, err := s.issueAndRegister(ctx, user, sess.IdentityProviderID, client)
	if err != nil {
		return domain.TokenPair{}, err
	}

	consumed, err := s.Sessions.Consume(ctx, sess)
	if err != nil || !consumed {
		s.discardSession(ctx, pair.SessionID)
	}
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !consumed {
		l.Warn("refresh token reused", "session_key", sess.SessionKey, "user_id", sess.UserID)
		return domain.TokenPair{}, fmt.Errorf("%w: refresh token already rotated", ErrReplayOrAlreadyUsed)
	}

	l.Info("session rotated",
		"session_key", pair.SessionID,
		"user_id", user.ID,
	)
	return pair, nil
}

// AccessRenewal is a fresh access token for an unchanged session.
type AccessRenewal struct {
	AccessToken     string
	AccessExpiresAt time.Time
	ExpiresIn       int64 // seconds
	SessionID       string
}

// RenewAccessToken signs a new access token for the live session behind
// refreshToken without rotating it. The refresh token stays valid.
func (s *AuthService) RenewAccessToken(ctx context.Context, refreshToken string) (AccessRenewal, error) {
	claims, _, err := s.liveRefreshSession(ctx, refreshToken)
	if err != nil {
		return AccessRenewal{}, err
	}

	user, err := s.refreshUser(ctx, claims.Subject)
	if err != nil {
		return AccessRenewal{}, err
	}

	token, expiresAt, err := s.Tokens.RotateAccessToken(claims, domain.Profile{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		IdentityID: claims.IdentityID,
	})
	if err != nil {
		return AccessRenewal{}, err
	}

	slogx.FromContext(ctx).Debug("access token renewed", "session_key", claims.SID, "user_id", user.ID)
	return AccessRenewal{
		AccessToken:     token,
		AccessExpiresAt: expiresAt,
		ExpiresIn:       int64(expiresAt.Sub(s.now()) / time.Second),
		SessionID:       claims.SID,
	}, nil
}

// liveRefreshSession validates a refresh token and loads its session.
func (s *AuthService) liveRefreshSession(ctx context.Context, refreshToken string) (jwtx.Claims, domain.Session, error) {
	claims, err := s.Tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return jwtx.Claims{}, domain.Session{}, err
	}

	sess, err := s.Sessions.Lookup(ctx, claims.SID)
	if errors.Is(err, ErrNotFound) {
		slogx.FromContext(ctx).Warn("refresh for unknown session", "jti", claims.ID, "user_id", claims.Subject)
		return jwtx.Claims{}, domain.Session{}, fmt.Errorf("%w: session revoked or already rotated", ErrNotFound)
	}
	if err != nil {
		return jwtx.Claims{}, domain.Session{}, err
	}
	if sess.UserID != claims.Subject {
		return jwtx.Claims{}, domain.Session{}, fmt.Errorf("%w: session owner mismatch", ErrInvalidCredentials)
	}
	return claims, sess, nil
}

func (s *AuthService) refreshUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if errors.Is(mapStoreErr(err), ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: user no longer exists", ErrInvalidCredentials)
	}
	return domain.User{}, fmt.Errorf("load user: %w", err)
}

// discardSession drops a session that was registered for a rotation that
// did not complete. Failure leaves it to expire on its own.
func (s *AuthService) discardSession(ctx context.Context, key string) {
	if err := s.Sessions.Revoke(ctx, key); err != nil {
		slogx.FromContext(ctx).Warn("failed to discard unused session", "session_key", key, "error", err)
	}
}

// Logout revokes the session behind an access token.
func (s *AuthService) Logout(ctx context.Context, claims jwtx.Claims) error {
	if err := s.Sessions.Revoke(ctx, claims.SID); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("user logged out", "user_id", claims.Subject, "session_key", claims.SID)
	return nil
}

// LogoutAll revokes every session of the caller.
func (s *AuthService) LogoutAll(ctx context.Context, claims jwtx.Claims) (int, error) {
	return s.Sessions.RevokeAllForUser(ctx, claims.Subject)
}

// ValidateToken checks an access token cryptographically. Valid does not
// depend on the session; SessionActive reports whether it is still live.
// Invalid tokens are a result, not an error; only an unavailable store is.
func (s *AuthService) ValidateToken(ctx context.Context, accessToken string) (TokenValidation, error) {
	claims, err := s.Tokens.ValidateAccess(accessToken)
	if err != nil {
		slogx.FromContext(ctx).Debug("token validation failed", "error", err)
		return TokenValidation{}, nil
	}

	active := true
	if _, err := s.Sessions.Lookup(ctx, claims.SID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return TokenValidation{}, err
		}
		active = false
	}

	return TokenValidation{
		Valid:         true,
		SessionActive: active,
		Claims:        &claims,
		SessionID:     claims.SID,
		ExpiresAt:     claims.ExpiresAtTime(),
	}, nil
}

// GetProfile returns the caller's user record.
func (s *AuthService) GetProfile(ctx context.Context, claims jwtx.Claims) (domain.User, error) {
	user, err := s.Users.GetByID(ctx, claims.Subject)
	return user, mapStoreErr(err)
}

// GetUserSessions lists the caller's live sessions and the index size after
// stale entries are pruned.
func (s *AuthService) GetUserSessions(ctx context.Context, claims jwtx.Claims) ([]domain.Session, int64, error) {
	sessions, err := s.Sessions.ListForUser(ctx, claims.Subject)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.Sessions.CountActiveSessions(ctx, claims.Subject)
	if err != nil {
		return nil, 0, err
	}
	return sessions, count, nil
}

// RevokeSession revokes one of the caller's own sessions. Someone else's
// session reads as not found.
func (s *AuthService) RevokeSession(ctx context.Context, claims jwtx.Claims, sessionKey string) error {
	sess, err := s.Sessions.get(ctx, sessionKey)
	if err != nil {
		return err
	}
	if sess.UserID != claims.Subject {
		return fmt.Errorf("%w: session", ErrNotFound)
	}
	return s.Sessions.Revoke(ctx, sessionKey)
}

// startSession issues a pair for a fresh login and records the login time.
func (s *AuthService) startSession(ctx context.Context, user domain.User, identityID string, client ClientInfo) (domain.TokenPair, error) {
	pair, err := s.issueAndRegister(ctx, user, identityID, client)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Users.TouchLogin(ctx, user.ID, s.now()); err != nil {
		slogx.FromContext(ctx).Warn("failed to record login time", "user_id", user.ID, "error", err)
	}
	return pair, nil
}

func (s *AuthService) issueAndRegister(ctx context.Context, user domain.User, identityID string, client ClientInfo) (domain.TokenPair, error) {
	pair, err := s.Tokens.IssuePair(domain.Profile{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		IdentityID: identityID,
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	now := s.now()
	err = s.Sessions.Register(ctx, domain.Session{
		SessionKey:         pair.SessionID,
		UserID:             user.ID,
		IdentityProviderID: identityID,
		Email:              user.Email,
		UserAgent:          client.UserAgent,
		IPAddress:          client.IPAddress,
		CreatedAt:          now,
		LastActivityAt:     now,
		ExpiresAt:          pair.RefreshExpiresAt,
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func validEmail(email string) bool {
	local, domainPart, ok := strings.Cut(email, "@")
	return ok && local != "" && domainPart != "" && !strings.ContainsAny(email, " \t\r\n")
}

func otpEmailBody(code string, validFor time.Duration) string {
	return fmt.Sprintf(`Your sign-in code is: %s

It expires in %d minutes and can only be used once.

If you did not request this code, you can ignore this email.
`, code, int(validFor.Round(time.Minute)/time.Minute))
}

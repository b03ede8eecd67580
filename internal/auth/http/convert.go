package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{
		UserAgent: r.UserAgent(),
		IPAddress: httpx.IPKeyExtractor(r),
	}
}

func toUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		PictureURL:  u.PictureURL,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func toTokenPair(p domain.TokenPair) authsdk.TokenPairResponse {
	return authsdk.TokenPairResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		TokenType:        p.TokenType,
		ExpiresIn:        p.ExpiresIn,
	}
}

func toLogin(l service.LoginResult) authsdk.LoginResponse {
	return authsdk.LoginResponse{
		TokenPairResponse: toTokenPair(l.Pair),
		User:              toUser(l.User),
		IsNew:             l.IsNew,
	}
}

func toClaims(c jwtx.Claims) *authsdk.TokenClaims {
	out := &authsdk.TokenClaims{
		Subject:    c.Subject,
		Email:      c.Email,
		Name:       c.Name,
		IdentityID: c.IdentityID,
		SessionID:  c.SID,
		TokenType:  c.TokenType.String(),
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		JTI:        c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Unix()
	}
	return out
}

func toSessions(sessions []domain.Session, currentSID string) []authsdk.SessionInfo {
	out := make([]authsdk.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, authsdk.SessionInfo{
			SessionID:      s.SessionKey,
			UserAgent:      s.UserAgent,
			IPAddress:      s.IPAddress,
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
			Current:        s.SessionKey == currentSID,
		})
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

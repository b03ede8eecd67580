package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// GetProfile returns the signed-in user.
func (s *Session) GetProfile(ctx context.Context) (*User, error) {
	var out ProfileResponse
	if err := s.call(ctx, http.MethodGet, "/v1/auth/profile", &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListSessions returns the user's signed-in devices.
func (s *Session) ListSessions(ctx context.Context) (*SessionsResponse, error) {
	var out SessionsResponse
	if err := s.call(ctx, http.MethodGet, "/v1/auth/sessions", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeSession signs out one of the user's other devices.
func (s *Session) RevokeSession(ctx context.Context, sessionID string) error {
	var out RevokeSessionResponse
	return s.call(ctx, http.MethodPost, "/v1/auth/sessions/"+url.PathEscape(sessionID)+"/revoke", &out)
}

// Logout revokes this session. The Session is unusable afterwards.
func (s *Session) Logout(ctx context.Context) error {
	var out LogoutResponse
	if err := s.call(ctx, http.MethodPost, "/v1/auth/logout", &out); err != nil {
		return err
	}
	s.forget()
	return nil
}

// LogoutAll revokes every session of the user, this one included, and
// returns how many were revoked.
func (s *Session) LogoutAll(ctx context.Context) (int, error) {
	var out LogoutAllResponse
	if err := s.call(ctx, http.MethodPost, "/v1/auth/logout-all", &out); err != nil {
		return 0, err
	}
	s.forget()
	return out.RevokedCount, nil
}

package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// SessionHandler serves the bearer-authenticated account routes. Every
// route runs behind AuthnMiddleware and requireLiveSession.
type SessionHandler struct {
	Auth *service.AuthService
}

// requireLiveSession rejects access tokens whose session was revoked or
// rotated away. A signature check alone would accept them until expiry.
func requireLiveSession(sessions *service.SessionStore) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := httpx.ClaimsFromContext(r.Context())
			if !ok {
				authsdk.ErrInvalidToken.WriteError(w)
				return
			}

			_, err := sessions.Lookup(r.Context(), claims.SID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, service.ErrNotFound):
				slogx.FromContext(r.Context()).Warn("access token for dead session", "session_key", claims.SID)
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				authsdk.ErrInvalidToken.WriteError(w)
			default:
				writeServiceError(w, r, err)
			}
		})
	}
}

// mustClaims is only called behind AuthnMiddleware.
func mustClaims(r *http.Request) jwtx.Claims {
	c, _ := httpx.ClaimsFromContext(r.Context())
	return c
}

// HandleLogout godoc
//
//	@Summary		Log Out
//	@Description	Revokes the session of the presented access token.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.LogoutResponse	"success"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		503	{object}	authsdk.ErrorResponse	"store unavailable"
//	@Router			/v1/auth/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), mustClaims(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutResponse{Success: true})
}

// HandleLogoutAll godoc
//
//	@Summary		Log Out Everywhere
//	@Description	Revokes every session of the caller, including the current one.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.LogoutAllResponse	"success, revoked_count"
//	@Failure		401	{object}	authsdk.ErrorResponse		"invalid_token"
//	@Failure		503	{object}	authsdk.ErrorResponse		"store unavailable"
//	@Router			/v1/auth/logout-all [post].
func (h *SessionHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Auth.LogoutAll(r.Context(), mustClaims(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutAllResponse{Success: true, RevokedCount: n})
}

// HandleProfile godoc
//
//	@Summary		Get Profile
//	@Description	Returns the caller's account.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.ProfileResponse	"user"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"account deleted"
//	@Router			/v1/auth/profile [get].
func (h *SessionHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.GetProfile(r.Context(), mustClaims(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{User: toUser(user)})
}

// HandleListSessions godoc
//
//	@Summary		List Sessions
//	@Description	Lists the caller's live sessions. The current one is flagged.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.SessionsResponse	"sessions, active_count"
//	@Failure		401	{object}	authsdk.ErrorResponse		"invalid_token"
//	@Failure		503	{object}	authsdk.ErrorResponse		"store unavailable"
//	@Router			/v1/auth/sessions [get].
func (h *SessionHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	sessions, count, err := h.Auth.GetUserSessions(r.Context(), claims)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionsResponse{
		Sessions:    toSessions(sessions, claims.SID),
		ActiveCount: count,
	})
}

// HandleRevokeSession godoc
//
//	@Summary		Revoke a Session
//	@Description	Signs out one of the caller's own devices. Other users' sessions read as not found.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string							true	"Session ID"
//	@Success		200	{object}	authsdk.RevokeSessionResponse	"success, message"
//	@Failure		401	{object}	authsdk.ErrorResponse			"invalid_token"
//	@Failure		404	{object}	authsdk.ErrorResponse			"not_found"
//	@Router			/v1/auth/sessions/{id}/revoke [post].
func (h *SessionHandler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Auth.RevokeSession(r.Context(), mustClaims(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokeSessionResponse{
		Success: true,
		Message: "session revoked",
	})
}

package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// TokenHandler serves refresh and validation.
type TokenHandler struct {
	Auth *service.AuthService
}

// HandleRefresh godoc
//
//	@Summary		Rotate a Refresh Token
//	@Description	Consumes the session behind the refresh token and returns a new pair for a new session.
//	@Description	A rotated, revoked or expired refresh token is reported as invalid_grant.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshTokenRequest	true	"refresh_token"
//	@Success		200		{object}	authsdk.TokenPairResponse	"new token pair"
//	@Failure		400		{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse		"invalid_grant"
//	@Failure		503		{object}	authsdk.ErrorResponse		"store unavailable"
//	@Header			200		{string}	Cache-Control				"no-store"
//	@Router			/v1/auth/token/refresh [post].
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Auth.RefreshToken(r.Context(), refresh, clientInfo(r))
	if err != nil {
		writeGrantError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenPair(pair))
}

// HandleRenewAccess godoc
//
//	@Summary		Renew an Access Token
//	@Description	Signs a new access token for the live session behind the refresh token. The refresh token is not rotated.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshTokenRequest	true	"refresh_token"
//	@Success		200		{object}	authsdk.AccessTokenResponse	"new access token"
//	@Failure		400		{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse		"invalid_grant"
//	@Failure		503		{object}	authsdk.ErrorResponse		"store unavailable"
//	@Header			200		{string}	Cache-Control				"no-store"
//	@Router			/v1/auth/token/access [post].
func (h *TokenHandler) HandleRenewAccess(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	renewal, err := h.Auth.RenewAccessToken(r.Context(), refresh)
	if err != nil {
		writeGrantError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AccessTokenResponse{
		AccessToken:     renewal.AccessToken,
		TokenType:       "Bearer",
		ExpiresIn:       renewal.ExpiresIn,
		AccessExpiresAt: renewal.AccessExpiresAt,
		SessionID:       renewal.SessionID,
	})
}

// HandleValidate godoc
//
//	@Summary		Validate an Access Token
//	@Description	valid is the stateless signature and expiry check; session_active says whether its session is live.
//	@Description	Always 200 unless the store is down.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ValidateTokenRequest	true	"access_token"
//	@Success		200		{object}	authsdk.ValidateTokenResponse	"valid, session_active, claims, session_id, expires_at"
//	@Failure		400		{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		503		{object}	authsdk.ErrorResponse			"store unavailable"
//	@Router			/v1/auth/token/validate [post].
func (h *TokenHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ValidateTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	v, err := h.Auth.ValidateToken(r.Context(), strings.TrimSpace(req.AccessToken))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.ValidateTokenResponse{Valid: v.Valid, SessionActive: v.SessionActive}
	if v.Valid {
		out.Claims = toClaims(*v.Claims)
		out.SessionID = v.SessionID
		out.ExpiresAt = timePtr(v.ExpiresAt)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

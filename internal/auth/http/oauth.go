package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// OAuthHandler serves the Google sign-in flow.
type OAuthHandler struct {
	Auth *service.AuthService
}

// HandleInitiate godoc
//
//	@Summary		Start Google Sign-In
//	@Description	Stores a single-use, PKCE-bound state and returns the provider consent URL.
//	@Tags			OAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.InitiateOAuthRequest	false	"Optional redirect_uri"
//	@Success		200		{object}	authsdk.InitiateOAuthResponse	"authorization_url, state_token, expires_at"
//	@Failure		400		{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		501		{object}	authsdk.ErrorResponse			"provider not configured"
//	@Failure		503		{object}	authsdk.ErrorResponse			"store unavailable"
//	@Router			/v1/auth/oauth/initiate [post].
func (h *OAuthHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.InitiateOAuthRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	init, err := h.Auth.InitiateOAuth(r.Context(), strings.TrimSpace(req.RedirectURI))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.InitiateOAuthResponse{
		AuthorizationURL: init.AuthorizationURL,
		StateToken:       init.StateToken,
		ExpiresAt:        init.ExpiresAt,
	})
}

// HandleComplete godoc
//
//	@Summary		Finish Google Sign-In
//	@Description	Consumes the state, exchanges the authorization code and returns a token pair.
//	@Description	An unknown, expired or replayed state is reported as invalid_grant.
//	@Tags			OAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.CompleteOAuthRequest	true	"code and state"
//	@Success		200		{object}	authsdk.LoginResponse			"token pair, user, is_new"
//	@Failure		400		{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse			"invalid_grant"
//	@Failure		503		{object}	authsdk.ErrorResponse			"store unavailable"
//	@Header			200		{string}	Cache-Control					"no-store"
//	@Router			/v1/auth/oauth/complete [post].
func (h *OAuthHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CompleteOAuthRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	login, err := h.Auth.CompleteOAuth(r.Context(),
		strings.TrimSpace(req.Code),
		strings.TrimSpace(req.State),
		clientInfo(r),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLogin(login))
}

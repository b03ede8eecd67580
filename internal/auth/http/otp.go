package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// OtpHandler serves email one-time code sign-in.
type OtpHandler struct {
	Auth *service.AuthService
}

// HandleRequest godoc
//
//	@Summary		Request a Sign-In Code
//	@Description	Emails a one-time code. The reply is the same whether or not the address has an account.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RequestOtpRequest	true	"email"
//	@Success		200		{object}	authsdk.RequestOtpResponse	"accepted, message, expires_at, attempts_allowed"
//	@Failure		400		{object}	authsdk.ErrorResponse		"invalid email"
//	@Failure		429		{object}	authsdk.ErrorResponse		"too many codes requested; see Retry-After"
//	@Failure		503		{object}	authsdk.ErrorResponse		"store unavailable"
//	@Router			/v1/auth/otp/request [post].
func (h *OtpHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RequestOtpRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.Auth.RequestOtp(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RequestOtpResponse{
		Accepted:        res.Accepted,
		Message:         res.Message,
		ExpiresAt:       res.ExpiresAt,
		AttemptsAllowed: res.AttemptsAllowed,
	})
}

// HandleVerify godoc
//
//	@Summary		Verify a Sign-In Code
//	@Description	Checks the code. A wrong code is a 200 with success=false and the attempts left.
//	@Description	On success the account is created if needed and a token pair is returned.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.VerifyOtpRequest	true	"email and code"
//	@Success		200		{object}	authsdk.VerifyOtpResponse	"success, tokens, attempts_remaining, is_new, user"
//	@Failure		400		{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		503		{object}	authsdk.ErrorResponse		"store unavailable"
//	@Header			200		{string}	Cache-Control				"no-store"
//	@Router			/v1/auth/otp/verify [post].
func (h *OtpHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOtpRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.Auth.VerifyOtp(r.Context(), req.Email, req.Code, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.VerifyOtpResponse{
		Success:           res.Verification.Success,
		AttemptsRemaining: res.Verification.AttemptsRemaining,
	}
	if res.Login != nil {
		pair := toTokenPair(res.Login.Pair)
		user := toUser(res.Login.User)
		out.TokenPairResponse = &pair
		out.User = &user
		out.IsNew = res.Login.IsNew
	}

	httpx.WriteJSON(w, http.StatusOK, out)
}

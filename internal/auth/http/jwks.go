package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery. With
// HS256 the set is empty and resource servers call /v1/auth/token/validate.
//
//	@Summary		Get JWKS
//	@Description	Returns the Ed25519 keys used to verify JWTs. Empty when tokens are HMAC-signed.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	jwtx.JWKS	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(signer jwtx.Signer) http.HandlerFunc {
	set := jwtx.PublicJWKS(signer)
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, set)
	}
}

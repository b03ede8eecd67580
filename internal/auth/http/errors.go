package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// writeServiceError maps the service error taxonomy onto the wire. Every
// credential failure shares one generic reply.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rl *service.RateLimitError

	switch {
	case errors.As(err, &rl):
		authsdk.ErrRateLimited.WithRetryAfter(rl.RetryAfter).WriteError(w)
	case errors.Is(err, service.ErrRateLimited):
		authsdk.ErrRateLimited.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrReplayOrAlreadyUsed):
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrStoreUnavailable):
		slogx.FromContext(r.Context()).Error("store unavailable", "err", err)
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
	case errors.Is(err, service.ErrConfiguration):
		authsdk.ErrProviderNotConfigured.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// writeGrantError is writeServiceError for refresh grants: an unknown
// session is reported like any other bad grant.
func writeGrantError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrNotFound) {
		authsdk.ErrInvalidGrant.WriteError(w)
		return
	}
	writeServiceError(w, r, err)
}

// decodeRequest reads a JSON body, writing invalid_request on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Debug("bad request body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	return true
}

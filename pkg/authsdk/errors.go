package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	// RFC 6749 / 6750 codes
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidGrant   = "invalid_grant"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeServerError    = "server_error"

	// ErrorCodeTemporarilyUnavailable is returned while the session store is down.
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"

	ErrorCodeRateLimited           = "rate_limited"
	ErrorCodeNotFound              = "not_found"
	ErrorCodeProviderNotConfigured = "provider_not_configured"
)

// ============================================================================
// OAuth2Error - API error type
// ============================================================================

// OAuth2Error is the error body of every non-2xx response, in the RFC 6749
// shape. It is used both by the server (to write responses) and by the
// client (to represent them).
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g. "invalid_grant")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`

	// RetryAfter is parsed from the Retry-After header of 429 and 503 replies.
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on status and code so errors.Is(err, authsdk.ErrInvalidGrant)
// works on decoded responses.
func (e *OAuth2Error) Is(target error) bool {
	t, ok := target.(*OAuth2Error)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes this error to an HTTP response writer.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	if e.RetryAfter > 0 {
		secs := max(int((e.RetryAfter+time.Second-1)/time.Second), 1)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// WithRetryAfter returns a copy carrying a Retry-After hint.
func (e *OAuth2Error) WithRetryAfter(d time.Duration) *OAuth2Error {
	c := *e
	c.RetryAfter = d
	return &c
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned when the request is malformed or misses a
	// required field.
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidGrant covers every credential failure: a wrong or expired
	// code, an unknown OAuth state, a revoked or reused refresh token. The
	// description is the same for all of them.
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidGrant,
		Description: "invalid or expired code or token",
	}

	// ErrInvalidToken is returned when the bearer token is missing, invalid,
	// expired or its session was revoked.
	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, expired or revoked",
	}

	ErrRateLimited = &OAuth2Error{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeRateLimited,
		Description: "Too many requests. Please try again later.",
	}

	ErrNotFound = &OAuth2Error{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	// ErrProviderNotConfigured is returned by the OAuth routes when no
	// identity provider is set up.
	ErrProviderNotConfigured = &OAuth2Error{
		StatusCode:  http.StatusNotImplemented,
		Code:        ErrorCodeProviderNotConfigured,
		Description: "oauth sign-in is not configured",
	}

	// ErrTemporarilyUnavailable is returned when the session store cannot be
	// reached. Clients may retry.
	ErrTemporarilyUnavailable = &OAuth2Error{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeTemporarilyUnavailable,
		Description: "the service is temporarily unavailable",
	}

	// ErrServerError is returned when the server hit an unexpected condition.
	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// NewOAuth2Error creates an error with a custom description.
func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *OAuth2Error. It
// returns nil for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := &OAuth2Error{StatusCode: resp.StatusCode}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		e.Code = errResp.Error
		e.Description = errResp.ErrorDescription
		return e
	}

	// Fallback: generic error from the status code
	e.Code = ErrorCodeServerError
	e.Description = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return e
}

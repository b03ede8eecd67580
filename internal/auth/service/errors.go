package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/retryx"
)

// Error kinds. Callers branch on these with errors.Is; transports map them to
// status codes.
var (
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrExpired             = errors.New("expired")
	ErrRateLimited         = errors.New("rate_limited")
	ErrReplayOrAlreadyUsed = errors.New("replay_or_already_used")
	ErrNotFound            = errors.New("not_found")
	ErrStoreUnavailable    = errors.New("store_unavailable")
	ErrConfiguration       = errors.New("configuration_error")

	// ErrInvalidRequest rejects malformed input before any work is done.
	ErrInvalidRequest = errors.New("invalid_request")
)

// Token validation failures, each wrapping its kind.
var (
	ErrExpiredToken     = fmt.Errorf("expired_token: %w", ErrExpired)
	ErrInvalidSignature = fmt.Errorf("invalid_signature: %w", ErrInvalidCredentials)
	ErrMalformedToken   = fmt.Errorf("malformed_token: %w", ErrInvalidCredentials)
	ErrWrongTokenType   = fmt.Errorf("wrong_token_type: %w", ErrInvalidCredentials)
)

// RateLimitError carries how long the caller should wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate_limited: retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// mapStoreErr translates driver errors into the service taxonomy. A timeout
// is always unavailable, never not found.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}

func isTransient(err error) bool {
	return errors.Is(err, store.ErrUnavailable)
}

// NewStoreRetry is the retry policy for store calls. attempts <= 0 keeps
// the default.
func NewStoreRetry(attempts int) retryx.Policy {
	p := retryx.New(isTransient)
	if attempts > 0 {
		p.Attempts = attempts
	}
	return p
}

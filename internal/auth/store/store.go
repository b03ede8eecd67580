package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
)

var (
	// ErrNotFound means the key is absent or has expired.
	ErrNotFound = errors.New("store: not found")

	// ErrUnavailable wraps transport failures and timeouts. It is never
	// reported for a missing key, and callers may retry it.
	ErrUnavailable = errors.New("store: unavailable")

	ErrAlreadyExists = errors.New("store: already exists")
)

// Key namespaces shared by every driver.
const (
	SessionPrefix      = "session:"
	UserSessionsPrefix = "user_sessions:"
	ChallengePrefix    = "otp:challenge:"
	ActiveOtpPrefix    = "otp:active:"
	ChallengeExpiryKey = "otp:expiry"
	OAuthStatePrefix   = "oauth_state:"
	OtpRateLimitPrefix = "rate_limit:otp:"
)

// Store is the expiring key-value backend behind sessions, OTP challenges,
// OAuth state and rate limit counters. Drivers (redis, memory) implement it.
// Each sub-repository method is a single atomic store call.
type Store interface {
	Sessions() Sessions
	Challenges() Challenges
	OAuthStates() OAuthStates
	Counters() Counters

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

type Sessions interface {
	// PutSession writes the record with ttl and adds it to the owner's index
	// in one step. The index lives at least as long as its longest member.
	PutSession(ctx context.Context, s domain.Session, ttl time.Duration) error

	GetSession(ctx context.Context, key string) (domain.Session, error)

	// TouchSession updates last_activity_at without changing the TTL.
	TouchSession(ctx context.Context, key string, at time.Time) error

	// DeleteSession reports whether a record was removed.
	DeleteSession(ctx context.Context, key string) (bool, error)

	// RemoveFromIndex drops keys from the user's index. The index itself
	// disappears once it is empty.
	RemoveFromIndex(ctx context.Context, userID string, keys ...string) error
	ListIndex(ctx context.Context, userID string) ([]string, error)
	CountIndex(ctx context.Context, userID string) (int64, error)
}

type Challenges interface {
	// CreateChallenge stores c as the active challenge for its email and
	// marks the previously active challenge used, atomically.
	CreateChallenge(ctx context.Context, c domain.OtpChallenge, ttl time.Duration) error

	// LatestChallenge returns the active challenge for email.
	LatestChallenge(ctx context.Context, email string) (domain.OtpChallenge, error)

	// IncrementAttempts bumps the attempt counter and returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// MarkUsed flags the challenge used. first is true only for the caller
	// that flipped it.
	MarkUsed(ctx context.Context, id string) (first bool, err error)

	// DeleteExpiredChallenges removes challenges that expired before cutoff.
	DeleteExpiredChallenges(ctx context.Context, cutoff time.Time) (int, error)
}

type OAuthStates interface {
	PutState(ctx context.Context, s domain.OAuthState, ttl time.Duration) error

	// TakeState reads and deletes the state in one step.
	TakeState(ctx context.Context, token string) (domain.OAuthState, error)
}

type Counters interface {
	// Hit increments a fixed window counter. The window starts at the first
	// hit; ttl is the time left in it.
	Hit(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

package domain

import "time"

// OtpChallenge is one issued email code. Only the argon2id hash of the code
// is kept.
type OtpChallenge struct {
	ID           string
	Email        string
	CodeHash     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Attempts     int
	MaxAttempts  int
	Used         bool
	LinkedUserID string // empty when no account existed at issue time
}

// IsExpired reports whether the challenge has passed its expiry.
func (c OtpChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsTerminal reports whether the challenge can never verify again.
func (c OtpChallenge) IsTerminal(now time.Time) bool {
	return c.Used || c.Attempts >= c.MaxAttempts || c.IsExpired(now)
}

// AttemptsRemaining is never negative.
func (c OtpChallenge) AttemptsRemaining() int {
	return max(c.MaxAttempts-c.Attempts, 0)
}

// OtpVerification is the outcome of checking a code. A failed check is not
// an error; Success is false and AttemptsRemaining says how many tries are
// left on the current challenge.
type OtpVerification struct {
	Success           bool
	LinkedUserID      string
	IsNewIdentity     bool
	AttemptsRemaining int
}

// RateLimitResult reports the state of a fixed window counter after a hit.
type RateLimitResult struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/metrics"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/retryx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// Defaults for OtpConfig.
const (
	DefaultOtpCodeLength   = 6
	DefaultOtpExpiry       = 10 * time.Minute
	DefaultOtpMaxAttempts  = 3
	DefaultOtpRateLimit    = 5
	DefaultOtpRateWindow   = time.Hour
	DefaultOtpCleanupGrace = 24 * time.Hour
)

// Accepted range for OtpConfig.CodeLength.
const (
	MinOtpCodeLength = 4
	MaxOtpCodeLength = 10
)

type OtpConfig struct {
	CodeLength   int
	Expiry       time.Duration
	MaxAttempts  int
	RateLimit    int
	RateWindow   time.Duration
	CleanupGrace time.Duration
}

func (c OtpConfig) withDefaults() OtpConfig {
	if c.CodeLength <= 0 {
		c.CodeLength = DefaultOtpCodeLength
	}
	if c.Expiry <= 0 {
		c.Expiry = DefaultOtpExpiry
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultOtpMaxAttempts
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultOtpRateLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = DefaultOtpRateWindow
	}
	if c.CleanupGrace <= 0 {
		c.CleanupGrace = DefaultOtpCleanupGrace
	}
	return c
}

// OtpChallengeStore issues and verifies single-use email codes. At most one
// challenge per email is active; issuing a new one retires the previous.
type OtpChallengeStore struct {
	Challenges store.Challenges
	Counters   store.Counters
	Retry      retryx.Policy
	Metrics    *metrics.Metrics
	Config     OtpConfig

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

func NewOtpChallengeStore(s store.Store, cfg OtpConfig, retry retryx.Policy, m *metrics.Metrics) *OtpChallengeStore {
	return &OtpChallengeStore{
		Challenges: s.Challenges(),
		Counters:   s.Counters(),
		Retry:      retry,
		Metrics:    m,
		Config:     cfg.withDefaults(),
		Now:        time.Now,
	}
}

func (s *OtpChallengeStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// NormalizeEmail is the canonical form used for keys and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RateLimit counts one OTP request for email in a fixed window.
func (s *OtpChallengeStore) RateLimit(ctx context.Context, email string) (domain.RateLimitResult, error) {
	cfg := s.Config.withDefaults()
	key := store.OtpRateLimitPrefix + NormalizeEmail(email)

	type hit struct {
		count int64
		ttl   time.Duration
	}
	// INCR is not idempotent; a retried hit can only over-count, which
	// fails closed.
	h, err := retryx.DoValue(ctx, s.Retry, "otp.rate_limit", func(ctx context.Context) (hit, error) {
		count, ttl, err := s.Counters.Hit(ctx, key, cfg.RateWindow)
		return hit{count: count, ttl: ttl}, err
	})
	if err != nil {
		return domain.RateLimitResult{}, mapStoreErr(err)
	}

	res := domain.RateLimitResult{
		Allowed: h.count <= int64(cfg.RateLimit),
		Count:   h.count,
		Limit:   int64(cfg.RateLimit),
	}
	if !res.Allowed {
		res.RetryAfter = h.ttl
	}
	return res, nil
}

// Issue creates a new challenge for email and returns the raw code, which is
// never stored. linkedUserID is the existing account, if any.
func (s *OtpChallengeStore) Issue(ctx context.Context, email, linkedUserID string) (string, domain.OtpChallenge, error) {
	cfg := s.Config.withDefaults()
	email = NormalizeEmail(email)
	l := slogx.FromContext(ctx)

	limit, err := s.RateLimit(ctx, email)
	if err != nil {
		return "", domain.OtpChallenge{}, err
	}
	if !limit.Allowed {
		s.Metrics.OtpRateLimited()
		l.Warn("otp rate limit exceeded", "email", email, "count", limit.Count)
		return "", domain.OtpChallenge{}, &RateLimitError{RetryAfter: limit.RetryAfter}
	}

	code, err := cryptox.GenerateNumericCode(cfg.CodeLength)
	if err != nil {
		return "", domain.OtpChallenge{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := cryptox.HashSecret(code)
	if err != nil {
		return "", domain.OtpChallenge{}, fmt.Errorf("hash code: %w", err)
	}

	now := s.now()
	challenge := domain.OtpChallenge{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		CodeHash:     hash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(cfg.Expiry),
		MaxAttempts:  cfg.MaxAttempts,
		LinkedUserID: linkedUserID,
	}

	// The record outlives its expiry by the cleanup grace as a backstop.
	err = s.Retry.Do(ctx, "otp.create", func(ctx context.Context) error {
		return s.Challenges.CreateChallenge(ctx, challenge, cfg.Expiry+cfg.CleanupGrace)
	})
	if err != nil {
		return "", domain.OtpChallenge{}, mapStoreErr(err)
	}

	s.Metrics.OtpIssued()
	l.Info("otp issued", "email", email, "expires_at", challenge.ExpiresAt)
	return code, challenge, nil
}

// Verify checks code against the active challenge for email. A failed check
// is a result, not an error; only store failures are returned as errors.
func (s *OtpChallengeStore) Verify(ctx context.Context, email, code string) (domain.OtpVerification, error) {
	email = NormalizeEmail(email)
	ctx = slogx.With(ctx, "email", email)
	log := slogx.FromContext(ctx)
	failed := domain.OtpVerification{}

	c, err := retryx.DoValue(ctx, s.Retry, "otp.latest", func(ctx context.Context) (domain.OtpChallenge, error) {
		return s.Challenges.LatestChallenge(ctx, email)
	})
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.OtpVerification(metrics.OtpNoActive)
		return failed, nil
	}
	if err != nil {
		return failed, mapStoreErr(err)
	}

	now := s.now()
	if c.Used || c.IsExpired(now) {
		s.Metrics.OtpVerification(metrics.OtpNoActive)
		return failed, nil
	}

	if c.Attempts >= c.MaxAttempts {
		if _, err := s.markUsed(ctx, c.ID); err != nil {
			return failed, err
		}
		s.Metrics.OtpVerification(metrics.OtpExhausted)
		log.Warn("otp attempts exhausted", "attempts", c.Attempts)
		return failed, nil
	}

	// Persist the attempt before comparing so concurrent guesses each
	// consume one. A retried increment can only over-count.
	attempts, err := retryx.DoValue(ctx, s.Retry, "otp.increment", func(ctx context.Context) (int, error) {
		return s.Challenges.IncrementAttempts(ctx, c.ID)
	})
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.OtpVerification(metrics.OtpNoActive)
		return failed, nil
	}
	if err != nil {
		return failed, mapStoreErr(err)
	}
	if attempts > c.MaxAttempts {
		s.Metrics.OtpVerification(metrics.OtpExhausted)
		return failed, nil
	}
	remaining := max(c.MaxAttempts-attempts, 0)

	if err := cryptox.VerifySecret(strings.TrimSpace(code), c.CodeHash); err != nil {
		if !errors.Is(err, cryptox.ErrSecretMismatch) {
			log.Error("stored otp hash is unreadable", "error", err)
			remaining = 0
		}
		s.Metrics.OtpVerification(metrics.OtpMismatch)
		log.Info("otp mismatch", "attempts_remaining", remaining)
		return domain.OtpVerification{AttemptsRemaining: remaining}, nil
	}

	first, err := s.markUsed(ctx, c.ID)
	if err != nil {
		return failed, err
	}
	if !first {
		s.Metrics.OtpVerification(metrics.OtpReplay)
		log.Warn("otp already used by a concurrent verify")
		return failed, nil
	}

	s.Metrics.OtpVerification(metrics.OtpVerified)
	return domain.OtpVerification{
		Success:           true,
		LinkedUserID:      c.LinkedUserID,
		IsNewIdentity:     c.LinkedUserID == "",
		AttemptsRemaining: remaining,
	}, nil
}

func (s *OtpChallengeStore) markUsed(ctx context.Context, id string) (bool, error) {
	first, err := retryx.DoValue(ctx, s.Retry, "otp.mark_used", func(ctx context.Context) (bool, error) {
		return s.Challenges.MarkUsed(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return first, mapStoreErr(err)
}

// CleanupExpired removes challenges that expired more than the cleanup
// grace ago.
func (s *OtpChallengeStore) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.Config.withDefaults().CleanupGrace)
	n, err := retryx.DoValue(ctx, s.Retry, "otp.cleanup", func(ctx context.Context) (int, error) {
		return s.Challenges.DeleteExpiredChallenges(ctx, cutoff)
	})
	return n, mapStoreErr(err)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/metrics"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/retryx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// SessionStore tracks server-side refresh sessions and the per-user index
// used to revoke them.
type SessionStore struct {
	Sessions store.Sessions
	Retry    retryx.Policy
	Metrics  *metrics.Metrics

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

func NewSessionStore(sessions store.Sessions, retry retryx.Policy, m *metrics.Metrics) *SessionStore {
	return &SessionStore{Sessions: sessions, Retry: retry, Metrics: m, Now: time.Now}
}

func (s *SessionStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Register stores sess until its expiry and indexes it under its user.
func (s *SessionStore) Register(ctx context.Context, sess domain.Session) error {
	if sess.SessionKey == "" || sess.UserID == "" {
		return errors.New("register session: session key and user id are required")
	}

	now := s.now()
	ttl := sess.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("register session: %w", ErrExpired)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActivityAt.IsZero() {
		sess.LastActivityAt = sess.CreatedAt
	}

	err := s.Retry.Do(ctx, "session.register", func(ctx context.Context) error {
		return s.Sessions.PutSession(ctx, sess, ttl)
	})
	if err != nil {
		return mapStoreErr(err)
	}

	s.Metrics.SessionRegistered()
	slogx.FromContext(ctx).Debug("session registered",
		"session_key", sess.SessionKey,
		"user_id", sess.UserID,
	)
	return nil
}

// Lookup returns the live session for key and bumps its last activity.
// ErrNotFound covers both absent and expired records.
func (s *SessionStore) Lookup(ctx context.Context, key string) (domain.Session, error) {
	sess, err := s.get(ctx, key)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	if sess.IsExpired(now) {
		return domain.Session{}, fmt.Errorf("%w: session expired", ErrNotFound)
	}

	if err := s.Sessions.TouchSession(ctx, key, now); err != nil {
		slogx.FromContext(ctx).Warn("failed to touch session",
			"session_key", key,
			"error", err,
		)
	} else {
		sess.LastActivityAt = now
	}
	return sess, nil
}

func (s *SessionStore) get(ctx context.Context, key string) (domain.Session, error) {
	sess, err := retryx.DoValue(ctx, s.Retry, "session.get", func(ctx context.Context) (domain.Session, error) {
		return s.Sessions.GetSession(ctx, key)
	})
	return sess, mapStoreErr(err)
}

// Revoke deletes the session and drops it from its owner's index. Revoking
// an absent session is not an error.
func (s *SessionStore) Revoke(ctx context.Context, key string) error {
	sess, err := s.get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.Consume(ctx, sess)
	return err
}

// Consume deletes the session and reports whether this call removed it.
// Refresh rotation uses it so only one of two racing refreshes wins.
func (s *SessionStore) Consume(ctx context.Context, sess domain.Session) (bool, error) {
	deleted, err := retryx.DoValue(ctx, s.Retry, "session.delete", func(ctx context.Context) (bool, error) {
		return s.Sessions.DeleteSession(ctx, sess.SessionKey)
	})
	if err != nil {
		return false, mapStoreErr(err)
	}
	if !deleted {
		return false, nil
	}

	err = s.Retry.Do(ctx, "session.unindex", func(ctx context.Context) error {
		return s.Sessions.RemoveFromIndex(ctx, sess.UserID, sess.SessionKey)
	})
	if err != nil {
		// The primary is gone; ListForUser reconciles the stale entry.
		slogx.FromContext(ctx).Warn("failed to remove session from index",
			"session_key", sess.SessionKey,
			"user_id", sess.UserID,
			"error", err,
		)
	}
	s.Metrics.SessionsRevoked(1)
	return true, nil
}

// RevokeAllForUser deletes every indexed session of userID and unindexes
// exactly the keys it handled. Sessions registered while it runs stay
// indexed, and keys whose delete failed stay indexed for a later attempt.
// The count covers confirmed deletions only.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	l := slogx.FromContext(ctx)

	keys, err := retryx.DoValue(ctx, s.Retry, "session.list_index", func(ctx context.Context) ([]string, error) {
		return s.Sessions.ListIndex(ctx, userID)
	})
	if err != nil {
		return 0, mapStoreErr(err)
	}

	revoked := 0
	handled := make([]string, 0, len(keys))
	for _, key := range keys {
		deleted, err := retryx.DoValue(ctx, s.Retry, "session.delete", func(ctx context.Context) (bool, error) {
			return s.Sessions.DeleteSession(ctx, key)
		})
		if err != nil {
			l.Warn("failed to revoke session",
				"session_key", key,
				"user_id", userID,
				"error", err,
			)
			continue
		}
		handled = append(handled, key)
		if deleted {
			revoked++
		}
	}

	s.Metrics.SessionsRevoked(revoked)
	if len(handled) > 0 {
		err = s.Retry.Do(ctx, "session.unindex", func(ctx context.Context) error {
			return s.Sessions.RemoveFromIndex(ctx, userID, handled...)
		})
		if err != nil {
			return revoked, mapStoreErr(err)
		}
	}

	l.Info("revoked all sessions", "user_id", userID, "revoked", revoked)
	return revoked, nil
}

// CountActiveSessions is the size of the user's index. It may include
// entries whose record already expired until ListForUser reconciles them.
func (s *SessionStore) CountActiveSessions(ctx context.Context, userID string) (int64, error) {
	n, err := retryx.DoValue(ctx, s.Retry, "session.count_index", func(ctx context.Context) (int64, error) {
		return s.Sessions.CountIndex(ctx, userID)
	})
	return n, mapStoreErr(err)
}

// ListForUser loads every live session in the user's index and removes
// index entries whose record is gone.
func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	keys, err := retryx.DoValue(ctx, s.Retry, "session.list_index", func(ctx context.Context) ([]string, error) {
		return s.Sessions.ListIndex(ctx, userID)
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	now := s.now()
	sessions := make([]domain.Session, 0, len(keys))
	var stale []string
	for _, key := range keys {
		sess, err := s.get(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			stale = append(stale, key)
			continue
		case err != nil:
			return nil, err
		}
		if sess.IsExpired(now) {
			stale = append(stale, key)
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		err := s.Retry.Do(ctx, "session.unindex", func(ctx context.Context) error {
			return s.Sessions.RemoveFromIndex(ctx, userID, stale...)
		})
		if err != nil {
			slogx.FromContext(ctx).Warn("failed to prune session index",
				"user_id", userID,
				"stale", len(stale),
				"error", err,
			)
		}
	}
	return sessions, nil
}

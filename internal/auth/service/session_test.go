package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

func newSessionStore(t *testing.T) (*service.SessionStore, *memory.Store, *clock) {
	t.Helper()
	c := newClock()
	kv := memory.New(memory.WithClock(c.Now))
	sessions := service.NewSessionStore(kv.Sessions(), fastRetry(), nil)
	sessions.Now = c.Now
	return sessions, kv, c
}

func newSession(key, user string, c *clock, ttl time.Duration) domain.Session {
	return domain.Session{
		SessionKey: key,
		UserID:     user,
		Email:      user + "@example.com",
		UserAgent:  "test-agent",
		IPAddress:  "192.0.2.1",
		ExpiresAt:  c.Now().Add(ttl),
	}
}

func TestSessionRegisterAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sessions, _, c := newSessionStore(t)

	require.NoError(t, sessions.Register(ctx, newSession("s1", "u1", c, time.Hour)))

	c.Advance(5 * time.Minute)
	got, err := sessions.Lookup(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "test-agent", got.UserAgent)
	require.Equal(t, c.Now(), got.LastActivityAt)

	count, err := sessions.CountActiveSessions(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	c.Advance(time.Hour)
	_, err = sessions.Lookup(ctx, "s1")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestSessionRegisterRejectsExpired(t *testing.T) {
	t.Parallel()
	sessions, _, c := newSessionStore(t)

	err := sessions.Register(context.Background(), newSession("s1", "u1", c, -time.Second))
	require.ErrorIs(t, err, service.ErrExpired)
}

func TestSessionRevokeIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sessions, _, c := newSessionStore(t)

	require.NoError(t, sessions.Register(ctx, newSession("s1", "u1", c, time.Hour)))
	require.NoError(t, sessions.Revoke(ctx, "s1"))
	require.NoError(t, sessions.Revoke(ctx, "s1"))
	require.NoError(t, sessions.Revoke(ctx, "never-existed"))

	_, err := sessions.Lookup(ctx, "s1")
	require.ErrorIs(t, err, service.ErrNotFound)

	count, err := sessions.CountActiveSessions(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSessionRevokeAllForUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sessions, _, c := newSessionStore(t)

	for i := range 3 {
		require.NoError(t, sessions.Register(ctx, newSession(fmt.Sprintf("a%d", i), "alice", c, time.Hour)))
	}
	require.NoError(t, sessions.Register(ctx, newSession("b0", "bob", c, time.Hour)))

	n, err := sessions.RevokeAllForUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for i := range 3 {
		_, err := sessions.Lookup(ctx, fmt.Sprintf("a%d", i))
		require.ErrorIs(t, err, service.ErrNotFound)
	}
	count, err := sessions.CountActiveSessions(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = sessions.Lookup(ctx, "b0")
	require.NoError(t, err, "other users keep their sessions")

	n, err = sessions.RevokeAllForUser(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSessionListForUserSelfHeals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sessions, kv, c := newSessionStore(t)

	require.NoError(t, sessions.Register(ctx, newSession("short", "u1", c, time.Minute)))
	require.NoError(t, sessions.Register(ctx, newSession("long", "u1", c, time.Hour)))
	require.NoError(t, sessions.Register(ctx, newSession("gone", "u1", c, time.Hour)))

	// Drop a primary behind the index's back.
	_, err := kv.Sessions().DeleteSession(ctx, "gone")
	require.NoError(t, err)
	c.Advance(2 * time.Minute)

	count, err := sessions.CountActiveSessions(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(3), count, "index still holds stale entries")

	list, err := sessions.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "long", list[0].SessionKey)

	count, err = sessions.CountActiveSessions(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestSessionConsumeSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sessions, _, c := newSessionStore(t)

	sess := newSession("s1", "u1", c, time.Hour)
	require.NoError(t, sessions.Register(ctx, sess))

	first, err := sessions.Consume(ctx, sess)
	require.NoError(t, err)
	require.True(t, first)

	second, err := sessions.Consume(ctx, sess)
	require.NoError(t, err)
	require.False(t, second)
}

func TestSessionUnavailableIsNotNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	kv := memory.New(memory.WithClock(c.Now))
	flaky := &flakySessions{Sessions: kv.Sessions()}
	sessions := service.NewSessionStore(flaky, fastRetry(), nil)
	sessions.Now = c.Now

	require.NoError(t, sessions.Register(ctx, newSession("s1", "u1", c, time.Hour)))

	flaky.down.Store(true)
	_, err := sessions.Lookup(ctx, "s1")
	require.ErrorIs(t, err, service.ErrStoreUnavailable)
	require.NotErrorIs(t, err, service.ErrNotFound)
	require.Equal(t, int32(3), flaky.calls.Load(), "retried up to the attempt limit")

	err = sessions.Revoke(ctx, "s1")
	require.ErrorIs(t, err, service.ErrStoreUnavailable, "revoke must not treat an outage as already revoked")

	flaky.down.Store(false)
	_, err = sessions.Lookup(ctx, "s1")
	require.NoError(t, err)
}

// loginDuringList registers one more session right after the index is read,
// standing in for a login that races a bulk revoke.
type loginDuringList struct {
	store.Sessions
	late domain.Session
	once sync.Once
}

func (l *loginDuringList) ListIndex(ctx context.Context, userID string) ([]string, error) {
	keys, err := l.Sessions.ListIndex(ctx, userID)
	l.once.Do(func() {
		err = errors.Join(err, l.Sessions.PutSession(ctx, l.late, time.Hour))
	})
	return keys, err
}

func TestSessionRevokeAllKeepsConcurrentLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	kv := memory.New(memory.WithClock(c.Now))
	racing := &loginDuringList{Sessions: kv.Sessions(), late: newSession("s3", "u1", c, time.Hour)}
	sessions := service.NewSessionStore(racing, fastRetry(), nil)
	sessions.Now = c.Now

	require.NoError(t, sessions.Register(ctx, newSession("s1", "u1", c, time.Hour)))
	require.NoError(t, sessions.Register(ctx, newSession("s2", "u1", c, time.Hour)))

	n, err := sessions.RevokeAllForUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// The late session is live and still reachable through the index.
	_, err = sessions.Lookup(ctx, "s3")
	require.NoError(t, err)
	count, err := sessions.CountActiveSessions(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	list, err := sessions.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "s3", list[0].SessionKey)

	n, err = sessions.RevokeAllForUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = sessions.Lookup(ctx, "s3")
	require.ErrorIs(t, err, service.ErrNotFound)
}

// failingDelete refuses to delete one key.
type failingDelete struct {
	store.Sessions
	key string
}

func (f *failingDelete) DeleteSession(ctx context.Context, key string) (bool, error) {
	if key == f.key {
		return false, store.ErrUnavailable
	}
	return f.Sessions.DeleteSession(ctx, key)
}

func TestSessionRevokeAllKeepsFailedKeysIndexed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	kv := memory.New(memory.WithClock(c.Now))
	sessions := service.NewSessionStore(&failingDelete{Sessions: kv.Sessions(), key: "stuck"}, fastRetry(), nil)
	sessions.Now = c.Now

	require.NoError(t, sessions.Register(ctx, newSession("ok", "u1", c, time.Hour)))
	require.NoError(t, sessions.Register(ctx, newSession("stuck", "u1", c, time.Hour)))

	n, err := sessions.RevokeAllForUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	keys, err := kv.Sessions().ListIndex(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"stuck"}, keys, "a later revoke can still reach it")
}

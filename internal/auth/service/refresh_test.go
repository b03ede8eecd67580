package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/stretchr/testify/require"
)

func otpLogin(t *testing.T, e *env, email string) domain.TokenPair {
	t.Helper()
	ctx := context.Background()

	_, err := e.auth.RequestOtp(ctx, email)
	require.NoError(t, err)
	res, err := e.auth.VerifyOtp(ctx, email, e.mailer.lastCode(t), testClient)
	require.NoError(t, err)
	require.NotNil(t, res.Login)
	return res.Login.Pair
}

// lockedUsers fails GetByID while failures remain.
type lockedUsers struct {
	service.UserDirectory
	failures atomic.Int32
}

func (u *lockedUsers) GetByID(ctx context.Context, id string) (domain.User, error) {
	if u.failures.Add(-1) >= 0 {
		return domain.User{}, errors.New("sqlite: database is locked")
	}
	return u.UserDirectory.GetByID(ctx, id)
}

// downPuts fails every session write while down is set.
type downPuts struct {
	store.Sessions
	down atomic.Bool
}

func (d *downPuts) PutSession(ctx context.Context, s domain.Session, ttl time.Duration) error {
	if d.down.Load() {
		return store.ErrUnavailable
	}
	return d.Sessions.PutSession(ctx, s, ttl)
}

func TestRefreshKeepsSessionWhenUserLookupFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	pair := otpLogin(t, e, "locked@example.com")

	users := &lockedUsers{UserDirectory: e.auth.Users}
	users.failures.Store(1)
	e.auth.Users = users

	_, err := e.auth.RefreshToken(ctx, pair.RefreshToken, testClient)
	require.ErrorContains(t, err, "database is locked")

	_, err = e.sessions.Lookup(ctx, pair.SessionID)
	require.NoError(t, err, "the old session is untouched")

	rotated, err := e.auth.RefreshToken(ctx, pair.RefreshToken, testClient)
	require.NoError(t, err, "retrying the same refresh token works")
	require.NotEqual(t, pair.SessionID, rotated.SessionID)
}

func TestRefreshKeepsSessionWhenRegisterFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	pair := otpLogin(t, e, "flaky@example.com")

	puts := &downPuts{Sessions: e.sessions.Sessions}
	e.sessions.Sessions = puts
	puts.down.Store(true)

	_, err := e.auth.RefreshToken(ctx, pair.RefreshToken, testClient)
	require.ErrorIs(t, err, service.ErrStoreUnavailable)

	puts.down.Store(false)
	_, err = e.sessions.Lookup(ctx, pair.SessionID)
	require.NoError(t, err)

	_, err = e.auth.RefreshToken(ctx, pair.RefreshToken, testClient)
	require.NoError(t, err)

	count, err := e.sessions.CountActiveSessions(ctx, e.userID(t, "flaky@example.com"))
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	pair := otpLogin(t, e, "racer@example.com")

	const racers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, racers)
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = e.auth.RefreshToken(ctx, pair.RefreshToken, testClient)
		}()
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		replay := errors.Is(err, service.ErrReplayOrAlreadyUsed)
		gone := errors.Is(err, service.ErrNotFound)
		require.True(t, replay || gone, "unexpected error: %v", err)
	}
	require.Equal(t, 1, wins)

	// Losers drop the session they registered.
	sessions, err := e.sessions.ListForUser(ctx, e.userID(t, "racer@example.com"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestRenewAccessToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	pair := otpLogin(t, e, "renew@example.com")

	e.clock.Advance(time.Minute)
	renewed, err := e.auth.RenewAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, pair.SessionID, renewed.SessionID)
	require.NotEqual(t, pair.AccessToken, renewed.AccessToken)
	require.Equal(t, int64(3600), renewed.ExpiresIn)
	require.True(t, renewed.AccessExpiresAt.After(pair.AccessExpiresAt))

	claims, err := e.tokens.ValidateAccess(renewed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, pair.SessionID, claims.SID)
	require.Equal(t, "renew@example.com", claims.Email)

	// The refresh token is not rotated by a renewal.
	_, err = e.auth.RefreshToken(ctx, pair.RefreshToken, testClient)
	require.NoError(t, err)

	t.Run("rotated session", func(t *testing.T) {
		_, err := e.auth.RenewAccessToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("access token presented", func(t *testing.T) {
		_, err := e.auth.RenewAccessToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrWrongTokenType)
	})
}

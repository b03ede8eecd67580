// Package storetest is a behavioural suite every store.Store driver must
// pass. Drivers call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh store. Each subtest calls it once.
type Factory func(t *testing.T) store.Store

var seq atomic.Int64

// unique namespaces keys so subtests can share one redis instance.
func unique(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

func Run(t *testing.T, newStore Factory) {
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("challenges", func(t *testing.T) { testChallenges(t, newStore(t)) })
	t.Run("oauth states", func(t *testing.T) { testOAuthStates(t, newStore(t)) })
	t.Run("counters", func(t *testing.T) { testCounters(t, newStore(t)) })
	t.Run("ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func newSession(userID string) domain.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Session{
		SessionKey:     unique("sess"),
		UserID:         userID,
		Email:          "a@x.com",
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64)",
		IPAddress:      "203.0.113.7",
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
	}
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Sessions()

	t.Run("put and get", func(t *testing.T) {
		user := unique("user")
		sess := newSession(user)
		require.NoError(t, repo.PutSession(ctx, sess, time.Hour))

		got, err := repo.GetSession(ctx, sess.SessionKey)
		require.NoError(t, err)
		require.Equal(t, sess.UserID, got.UserID)
		require.Equal(t, sess.UserAgent, got.UserAgent)
		require.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

		keys, err := repo.ListIndex(ctx, user)
		require.NoError(t, err)
		require.Equal(t, []string{sess.SessionKey}, keys)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := repo.GetSession(ctx, unique("nope"))
		require.ErrorIs(t, err, store.ErrNotFound)

		require.ErrorIs(t, repo.TouchSession(ctx, unique("nope"), time.Now()), store.ErrNotFound)

		deleted, err := repo.DeleteSession(ctx, unique("nope"))
		require.NoError(t, err)
		require.False(t, deleted)
	})

	t.Run("touch keeps ttl", func(t *testing.T) {
		sess := newSession(unique("user"))
		require.NoError(t, repo.PutSession(ctx, sess, time.Hour))

		later := sess.CreatedAt.Add(5 * time.Minute)
		require.NoError(t, repo.TouchSession(ctx, sess.SessionKey, later))

		got, err := repo.GetSession(ctx, sess.SessionKey)
		require.NoError(t, err)
		require.True(t, later.Equal(got.LastActivityAt), "last activity updated")
		require.True(t, sess.CreatedAt.Equal(got.CreatedAt), "other fields untouched")
		require.Equal(t, sess.UserAgent, got.UserAgent)
	})

	t.Run("expires", func(t *testing.T) {
		sess := newSession(unique("user"))
		require.NoError(t, repo.PutSession(ctx, sess, 50*time.Millisecond))

		require.Eventually(t, func() bool {
			_, err := repo.GetSession(ctx, sess.SessionKey)
			return err != nil
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("index operations", func(t *testing.T) {
		user := unique("user")
		var keys []string
		for range 3 {
			sess := newSession(user)
			require.NoError(t, repo.PutSession(ctx, sess, time.Hour))
			keys = append(keys, sess.SessionKey)
		}

		n, err := repo.CountIndex(ctx, user)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)

		got, err := repo.ListIndex(ctx, user)
		require.NoError(t, err)
		sort.Strings(got)
		sort.Strings(keys)
		require.Equal(t, keys, got)

		require.NoError(t, repo.RemoveFromIndex(ctx, user, keys[0]))
		n, err = repo.CountIndex(ctx, user)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		deleted, err := repo.DeleteSession(ctx, keys[1])
		require.NoError(t, err)
		require.True(t, deleted)

		require.NoError(t, repo.RemoveFromIndex(ctx, user, keys[1], keys[2]))
		n, err = repo.CountIndex(ctx, user)
		require.NoError(t, err)
		require.Zero(t, n)

		empty, err := repo.ListIndex(ctx, user)
		require.NoError(t, err)
		require.Empty(t, empty)

		// Removing nothing, or from a vanished index, is a no-op.
		require.NoError(t, repo.RemoveFromIndex(ctx, user))
		require.NoError(t, repo.RemoveFromIndex(ctx, user, keys[0]))

		// A fresh put recreates the index.
		sess := newSession(user)
		require.NoError(t, repo.PutSession(ctx, sess, time.Hour))
		n, err = repo.CountIndex(ctx, user)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})
}

func newChallenge(email string, expiresAt time.Time) domain.OtpChallenge {
	return domain.OtpChallenge{
		ID:          unique("ch"),
		Email:       email,
		CodeHash:    "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		CreatedAt:   expiresAt.Add(-10 * time.Minute).Truncate(time.Millisecond),
		ExpiresAt:   expiresAt.Truncate(time.Millisecond),
		MaxAttempts: 3,
	}
}

func testChallenges(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Challenges()

	t.Run("create and read latest", func(t *testing.T) {
		email := unique("u") + "@x.com"
		ch := newChallenge(email, time.Now().Add(10*time.Minute))
		ch.LinkedUserID = "user-1"
		require.NoError(t, repo.CreateChallenge(ctx, ch, time.Hour))

		got, err := repo.LatestChallenge(ctx, email)
		require.NoError(t, err)
		require.Equal(t, ch.ID, got.ID)
		require.Equal(t, ch.CodeHash, got.CodeHash)
		require.Equal(t, "user-1", got.LinkedUserID)
		require.Equal(t, 3, got.MaxAttempts)
		require.Zero(t, got.Attempts)
		require.False(t, got.Used)
		require.True(t, ch.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("new challenge marks prior used", func(t *testing.T) {
		email := unique("u") + "@x.com"
		first := newChallenge(email, time.Now().Add(10*time.Minute))
		require.NoError(t, repo.CreateChallenge(ctx, first, time.Hour))

		second := newChallenge(email, time.Now().Add(10*time.Minute))
		require.NoError(t, repo.CreateChallenge(ctx, second, time.Hour))

		got, err := repo.LatestChallenge(ctx, email)
		require.NoError(t, err)
		require.Equal(t, second.ID, got.ID)

		firstUse, err := repo.MarkUsed(ctx, first.ID)
		require.NoError(t, err)
		require.False(t, firstUse, "prior challenge already used")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.LatestChallenge(ctx, unique("u")+"@x.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = repo.IncrementAttempts(ctx, unique("ch"))
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = repo.MarkUsed(ctx, unique("ch"))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("increment attempts", func(t *testing.T) {
		ch := newChallenge(unique("u")+"@x.com", time.Now().Add(10*time.Minute))
		require.NoError(t, repo.CreateChallenge(ctx, ch, time.Hour))

		for want := 1; want <= 4; want++ {
			n, err := repo.IncrementAttempts(ctx, ch.ID)
			require.NoError(t, err)
			require.Equal(t, want, n)
		}
	})

	t.Run("mark used is first writer wins", func(t *testing.T) {
		ch := newChallenge(unique("u")+"@x.com", time.Now().Add(10*time.Minute))
		require.NoError(t, repo.CreateChallenge(ctx, ch, time.Hour))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				first, err := repo.MarkUsed(ctx, ch.ID)
				if err == nil && first {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, wins.Load())

		got, err := repo.LatestChallenge(ctx, ch.Email)
		require.NoError(t, err)
		require.True(t, got.Used)
	})

	t.Run("delete expired", func(t *testing.T) {
		now := time.Now()
		old := newChallenge(unique("u")+"@x.com", now.Add(-48*time.Hour))
		fresh := newChallenge(unique("u")+"@x.com", now.Add(10*time.Minute))
		require.NoError(t, repo.CreateChallenge(ctx, old, time.Hour))
		require.NoError(t, repo.CreateChallenge(ctx, fresh, time.Hour))

		n, err := repo.DeleteExpiredChallenges(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 1)

		_, err = repo.LatestChallenge(ctx, old.Email)
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = repo.LatestChallenge(ctx, fresh.Email)
		require.NoError(t, err)
	})
}

func testOAuthStates(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.OAuthStates()

	newState := func() domain.OAuthState {
		now := time.Now().UTC().Truncate(time.Millisecond)
		return domain.OAuthState{
			StateToken:    unique("state"),
			CSRFToken:     "csrf",
			PKCEVerifier:  "verifier",
			PKCEChallenge: "challenge",
			RedirectURI:   "https://app.example.com/callback",
			CreatedAt:     now,
			ExpiresAt:     now.Add(10 * time.Minute),
		}
	}

	t.Run("take once", func(t *testing.T) {
		st := newState()
		require.NoError(t, repo.PutState(ctx, st, 10*time.Minute))

		got, err := repo.TakeState(ctx, st.StateToken)
		require.NoError(t, err)
		require.Equal(t, st.PKCEVerifier, got.PKCEVerifier)
		require.Equal(t, st.RedirectURI, got.RedirectURI)

		_, err = repo.TakeState(ctx, st.StateToken)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent take has one winner", func(t *testing.T) {
		st := newState()
		require.NoError(t, repo.PutState(ctx, st, 10*time.Minute))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.TakeState(ctx, st.StateToken); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, wins.Load())
	})
}

func testCounters(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Counters()

	t.Run("counts within window", func(t *testing.T) {
		key := unique(store.OtpRateLimitPrefix)
		for want := int64(1); want <= 3; want++ {
			n, ttl, err := repo.Hit(ctx, key, time.Hour)
			require.NoError(t, err)
			require.Equal(t, want, n)
			require.Greater(t, ttl, 59*time.Minute)
			require.LessOrEqual(t, ttl, time.Hour)
		}
	})

	t.Run("window starts at first hit", func(t *testing.T) {
		key := unique(store.OtpRateLimitPrefix)
		_, _, err := repo.Hit(ctx, key, 100*time.Millisecond)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			n, _, err := repo.Hit(ctx, key, 100*time.Millisecond)
			return err == nil && n == 1
		}, 3*time.Second, 50*time.Millisecond)
	})
}

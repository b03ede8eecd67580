package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFindOrCreateByIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	ident := domain.Identity{
		Provider: domain.ProviderEmail,
		Subject:  "alice@example.com",
		Email:    "alice@example.com",
		Name:     "alice",
	}

	first, created, err := s.FindOrCreateByIdentity(ctx, ident)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, first.ID)
	require.Equal(t, "alice", first.Name)

	again, created, err := s.FindOrCreateByIdentity(ctx, ident)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	t.Run("links a second provider by email", func(t *testing.T) {
		google, created, err := s.FindOrCreateByIdentity(ctx, domain.Identity{
			Provider: domain.ProviderGoogle,
			Subject:  "1234567890",
			Email:    "Alice@Example.com",
			Name:     "Alice A",
		})
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, first.ID, google.ID)
	})

	t.Run("rejects incomplete identity", func(t *testing.T) {
		_, _, err := s.FindOrCreateByIdentity(ctx, domain.Identity{Provider: domain.ProviderEmail})
		require.ErrorIs(t, err, sqlite.ErrInvalidIdentity)
	})
}

func TestFindOrCreateConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	ident := domain.Identity{
		Provider: domain.ProviderEmail,
		Subject:  "race@example.com",
		Email:    "race@example.com",
	}

	const workers = 8
	ids := make([]string, workers)
	createdCount := make([]bool, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, created, err := s.FindOrCreateByIdentity(ctx, ident)
			ids[i], createdCount[i], errs[i] = u.ID, created, err
		}()
	}
	wg.Wait()

	n := 0
	for i := range workers {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
		if createdCount[i] {
			n++
		}
	}
	require.Equal(t, 1, n)
}

func TestLookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	u, _, err := s.FindOrCreateByIdentity(ctx, domain.Identity{
		Provider: domain.ProviderEmail,
		Subject:  "bob@example.com",
		Email:    "bob@example.com",
	})
	require.NoError(t, err)

	byEmail, err := s.FindByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byID, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", byID.Email)
	require.Nil(t, byID.LastLoginAt)

	_, err = s.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTouchLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	u, _, err := s.FindOrCreateByIdentity(ctx, domain.Identity{
		Provider: domain.ProviderEmail,
		Subject:  "carol@example.com",
		Email:    "carol@example.com",
	})
	require.NoError(t, err)

	at := time.Now().UTC().Add(time.Minute)
	require.NoError(t, s.TouchLogin(ctx, u.ID, at))

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	require.WithinDuration(t, at, *got.LastLoginAt, time.Second)

	require.ErrorIs(t, s.TouchLogin(ctx, "missing", at), store.ErrNotFound)
}

func TestMigrationsIdempotent(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

package memory

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
)

type oauthStatesRepo struct {
	s *Store
}

func (r *oauthStatesRepo) PutState(ctx context.Context, st domain.OAuthState, ttl time.Duration) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.set(store.OAuthStatePrefix+st.StateToken, st, ttl)
	return nil
}

func (r *oauthStatesRepo) TakeState(ctx context.Context, token string) (domain.OAuthState, error) {
	if err := checkCtx(ctx); err != nil {
		return domain.OAuthState{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := store.OAuthStatePrefix + token
	v, ok := r.s.get(key)
	if !ok {
		return domain.OAuthState{}, store.ErrNotFound
	}
	r.s.c.Delete(key)
	return v.(domain.OAuthState), nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

type oauthStatesRepo struct {
	c *redis.Client
}

func oauthStateKey(token string) string { return store.OAuthStatePrefix + token }

func (r *oauthStatesRepo) PutState(ctx context.Context, s domain.OAuthState, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode oauth state: %w", err)
	}
	return mapErr(r.c.Set(ctx, oauthStateKey(s.StateToken), raw, ttl).Err())
}

func (r *oauthStatesRepo) TakeState(ctx context.Context, token string) (domain.OAuthState, error) {
	raw, err := r.c.GetDel(ctx, oauthStateKey(token)).Bytes()
	if err != nil {
		return domain.OAuthState{}, mapErr(err)
	}

	var s domain.OAuthState
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.OAuthState{}, fmt.Errorf("redis: decode oauth state: %w", err)
	}
	return s, nil
}

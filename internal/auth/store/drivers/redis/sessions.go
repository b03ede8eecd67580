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

type sessionsRepo struct {
	c *redis.Client
}

func sessionKey(key string) string  { return store.SessionPrefix + key }
func userIndexKey(id string) string { return store.UserSessionsPrefix + id }

func (r *sessionsRepo) PutSession(ctx context.Context, s domain.Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode session: %w", err)
	}

	return mapErr(registerSessionScript.Run(ctx, r.c,
		[]string{sessionKey(s.SessionKey), userIndexKey(s.UserID)},
		raw, ttl.Milliseconds(), s.SessionKey,
	).Err())
}

func (r *sessionsRepo) GetSession(ctx context.Context, key string) (domain.Session, error) {
	raw, err := r.c.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		return domain.Session{}, mapErr(err)
	}

	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Session{}, fmt.Errorf("redis: decode session: %w", err)
	}
	return s, nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, key string, at time.Time) error {
	stamp, err := at.UTC().MarshalText()
	if err != nil {
		return err
	}

	n, err := touchSessionScript.Run(ctx, r.c, []string{sessionKey(key)}, string(stamp)).Int64()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, key string) (bool, error) {
	n, err := r.c.Del(ctx, sessionKey(key)).Result()
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

func (r *sessionsRepo) RemoveFromIndex(ctx context.Context, userID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	return mapErr(r.c.SRem(ctx, userIndexKey(userID), members...).Err())
}

func (r *sessionsRepo) ListIndex(ctx context.Context, userID string) ([]string, error) {
	keys, err := r.c.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	return keys, nil
}

func (r *sessionsRepo) CountIndex(ctx context.Context, userID string) (int64, error) {
	n, err := r.c.SCard(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

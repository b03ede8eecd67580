package memory

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
)

type sessionsRepo struct {
	s *Store
}

type index map[string]struct{}

func (r *sessionsRepo) PutSession(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.set(store.SessionPrefix+sess.SessionKey, sess, ttl)

	key := store.UserSessionsPrefix + sess.UserID
	idx := index{}
	if v, ok := r.s.get(key); ok {
		idx = v.(index)
	}
	idx[sess.SessionKey] = struct{}{}

	// -1 (no expiry) also sorts below ttl, matching PTTL
	left, ok := r.s.ttl(key)
	if !ok || left < ttl {
		left = ttl
	}
	r.s.set(key, idx, left)
	return nil
}

func (r *sessionsRepo) GetSession(ctx context.Context, key string) (domain.Session, error) {
	if err := checkCtx(ctx); err != nil {
		return domain.Session{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.get(store.SessionPrefix + key)
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return v.(domain.Session), nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, key string, at time.Time) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.get(store.SessionPrefix + key)
	if !ok {
		return store.ErrNotFound
	}
	sess := v.(domain.Session)
	sess.LastActivityAt = at.UTC()
	r.s.replace(store.SessionPrefix+key, sess)
	return nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, key string) (bool, error) {
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.delete(store.SessionPrefix + key), nil
}

func (r *sessionsRepo) RemoveFromIndex(ctx context.Context, userID string, keys ...string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.get(store.UserSessionsPrefix + userID)
	if !ok {
		return nil
	}
	idx := v.(index)
	for _, k := range keys {
		delete(idx, k)
	}
	if len(idx) == 0 {
		r.s.delete(store.UserSessionsPrefix + userID)
	}
	return nil
}

func (r *sessionsRepo) ListIndex(ctx context.Context, userID string) ([]string, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.get(store.UserSessionsPrefix + userID)
	if !ok {
		return nil, nil
	}
	idx := v.(index)
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	return keys, nil
}

func (r *sessionsRepo) CountIndex(ctx context.Context, userID string) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.get(store.UserSessionsPrefix + userID)
	if !ok {
		return 0, nil
	}
	return int64(len(v.(index))), nil
}

package memory

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
)

type challengesRepo struct {
	s *Store
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, ch domain.OtpChallenge, ttl time.Duration) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	activeKey := store.ActiveOtpPrefix + ch.Email
	if prev, ok := r.s.get(activeKey); ok {
		prevKey := store.ChallengePrefix + prev.(string)
		if v, ok := r.s.get(prevKey); ok {
			old := v.(domain.OtpChallenge)
			old.Used = true
			r.s.replace(prevKey, old)
		}
	}

	r.s.set(store.ChallengePrefix+ch.ID, ch, ttl)
	r.s.set(activeKey, ch.ID, ttl)
	r.s.expiry[ch.ID] = ch.ExpiresAt
	return nil
}

func (r *challengesRepo) LatestChallenge(ctx context.Context, email string) (domain.OtpChallenge, error) {
	if err := checkCtx(ctx); err != nil {
		return domain.OtpChallenge{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.get(store.ActiveOtpPrefix + email)
	if !ok {
		return domain.OtpChallenge{}, store.ErrNotFound
	}
	v, ok := r.s.get(store.ChallengePrefix + id.(string))
	if !ok {
		return domain.OtpChallenge{}, store.ErrNotFound
	}
	return v.(domain.OtpChallenge), nil
}

func (r *challengesRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := store.ChallengePrefix + id
	v, ok := r.s.get(key)
	if !ok {
		return 0, store.ErrNotFound
	}
	ch := v.(domain.OtpChallenge)
	ch.Attempts++
	r.s.replace(key, ch)
	return ch.Attempts, nil
}

func (r *challengesRepo) MarkUsed(ctx context.Context, id string) (bool, error) {
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := store.ChallengePrefix + id
	v, ok := r.s.get(key)
	if !ok {
		return false, store.ErrNotFound
	}
	ch := v.(domain.OtpChallenge)
	if ch.Used {
		return false, nil
	}
	ch.Used = true
	r.s.replace(key, ch)
	return true, nil
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, cutoff time.Time) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for id, exp := range r.s.expiry {
		if exp.After(cutoff) {
			continue
		}
		r.s.c.Delete(store.ChallengePrefix + id)
		delete(r.s.expiry, id)
		n++
	}
	return n, nil
}

package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

// cleanupBatch bounds how many ids one cleanup round trip handles.
const cleanupBatch = 500

type challengesRepo struct {
	c *redis.Client
}

// challengeHash is the HASH layout of a challenge. Times are unix ms and
// used counts markers; any value above zero means used.
type challengeHash struct {
	ID           string `redis:"id"`
	Email        string `redis:"email"`
	CodeHash     string `redis:"code_hash"`
	CreatedAt    int64  `redis:"created_at"`
	ExpiresAt    int64  `redis:"expires_at"`
	Attempts     int    `redis:"attempts"`
	MaxAttempts  int    `redis:"max_attempts"`
	Used         int    `redis:"used"`
	LinkedUserID string `redis:"linked_user_id"`
}

func (h challengeHash) toDomain() domain.OtpChallenge {
	return domain.OtpChallenge{
		ID:           h.ID,
		Email:        h.Email,
		CodeHash:     h.CodeHash,
		CreatedAt:    time.UnixMilli(h.CreatedAt).UTC(),
		ExpiresAt:    time.UnixMilli(h.ExpiresAt).UTC(),
		Attempts:     h.Attempts,
		MaxAttempts:  h.MaxAttempts,
		Used:         h.Used > 0,
		LinkedUserID: h.LinkedUserID,
	}
}

func challengeKey(id string) string { return store.ChallengePrefix + id }
func activeKey(email string) string { return store.ActiveOtpPrefix + email }

func (r *challengesRepo) CreateChallenge(ctx context.Context, ch domain.OtpChallenge, ttl time.Duration) error {
	used := 0
	if ch.Used {
		used = 1
	}

	return mapErr(createChallengeScript.Run(ctx, r.c,
		[]string{activeKey(ch.Email), challengeKey(ch.ID), store.ChallengeExpiryKey},
		ch.ID,
		ttl.Milliseconds(),
		ch.ExpiresAt.UnixMilli(),
		store.ChallengePrefix,
		"id", ch.ID,
		"email", ch.Email,
		"code_hash", ch.CodeHash,
		"created_at", ch.CreatedAt.UnixMilli(),
		"expires_at", ch.ExpiresAt.UnixMilli(),
		"attempts", ch.Attempts,
		"max_attempts", ch.MaxAttempts,
		"used", used,
		"linked_user_id", ch.LinkedUserID,
	).Err())
}

func (r *challengesRepo) LatestChallenge(ctx context.Context, email string) (domain.OtpChallenge, error) {
	id, err := r.c.Get(ctx, activeKey(email)).Result()
	if err != nil {
		return domain.OtpChallenge{}, mapErr(err)
	}

	cmd := r.c.HGetAll(ctx, challengeKey(id))
	if err := cmd.Err(); err != nil {
		return domain.OtpChallenge{}, mapErr(err)
	}
	if len(cmd.Val()) == 0 {
		return domain.OtpChallenge{}, store.ErrNotFound
	}

	var h challengeHash
	if err := cmd.Scan(&h); err != nil {
		return domain.OtpChallenge{}, err
	}
	return h.toDomain(), nil
}

func (r *challengesRepo) incr(ctx context.Context, id, field string) (int64, error) {
	n, err := incrFieldScript.Run(ctx, r.c, []string{challengeKey(id)}, field).Int64()
	if err != nil {
		return 0, mapErr(err)
	}
	if n < 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (r *challengesRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	n, err := r.incr(ctx, id, "attempts")
	return int(n), err
}

func (r *challengesRepo) MarkUsed(ctx context.Context, id string) (bool, error) {
	n, err := r.incr(ctx, id, "used")
	return n == 1, err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, cutoff time.Time) (int, error) {
	maxScore := strconv.FormatInt(cutoff.UnixMilli(), 10)
	total := 0

	for {
		ids, err := r.c.ZRangeByScore(ctx, store.ChallengeExpiryKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: cleanupBatch,
		}).Result()
		if err != nil {
			return total, mapErr(err)
		}
		if len(ids) == 0 {
			return total, nil
		}

		members := make([]any, len(ids))
		keys := make([]string, len(ids))
		for i, id := range ids {
			members[i] = id
			keys[i] = challengeKey(id)
		}

		pipe := r.c.TxPipeline()
		pipe.Del(ctx, keys...)
		zrem := pipe.ZRem(ctx, store.ChallengeExpiryKey, members...)
		if _, err := pipe.Exec(ctx); err != nil {
			return total, mapErr(err)
		}
		total += int(zrem.Val())

		if len(ids) < cleanupBatch {
			return total, nil
		}
	}
}

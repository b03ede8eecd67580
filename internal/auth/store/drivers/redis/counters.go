package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type countersRepo struct {
	c *redis.Client
}

func (r *countersRepo) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := r.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, mapErr(err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		ttl = window
	}
	return incr.Val(), ttl, nil
}

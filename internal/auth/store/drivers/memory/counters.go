package memory

import (
	"context"
	"time"
)

type countersRepo struct {
	s *Store
}

func (r *countersRepo) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	if v, ok := r.s.get(key); ok {
		count = v.(int64)
	}
	count++

	left, ok := r.s.ttl(key)
	if !ok || left < 0 {
		left = window
	}
	r.s.set(key, count, left)
	return count, left, nil
}

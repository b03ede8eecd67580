// Package redis is the production key-value driver. Multi-key operations
// run as Lua scripts so each store call is atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

// Config holds connection settings.
type Config struct {
	URL            string
	PoolSize       int
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

type Store struct {
	c *redis.Client
}

var _ store.Store = (*Store)(nil)

// New connects to Redis and verifies the connection with a PING. go-redis's
// own retries are disabled; callers retry through pkg/retryx.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.CommandTimeout > 0 {
		opts.ReadTimeout = cfg.CommandTimeout
		opts.WriteTimeout = cfg.CommandTimeout
	}
	opts.MaxRetries = -1
	opts.ContextTimeoutEnabled = true

	s := NewFromClient(redis.NewClient(opts))
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(c *redis.Client) *Store {
	return &Store{c: c}
}

func (s *Store) Sessions() store.Sessions       { return &sessionsRepo{c: s.c} }
func (s *Store) Challenges() store.Challenges   { return &challengesRepo{c: s.c} }
func (s *Store) OAuthStates() store.OAuthStates { return &oauthStatesRepo{c: s.c} }
func (s *Store) Counters() store.Counters       { return &countersRepo{c: s.c} }

func (s *Store) Ping(ctx context.Context) error { return mapErr(s.c.Ping(ctx).Err()) }

func (s *Store) Close() error { return s.c.Close() }

// mapErr folds go-redis errors into the store sentinels. Server replies
// (WRONGTYPE, script errors) are returned as is; anything that did not get a
// reply is treated as the backend being unavailable.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}

	var reply redis.Error
	if errors.As(err, &reply) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

// Package memory is an in-process key-value driver backed by go-cache. It
// keeps the same semantics as the redis driver for a single instance and is
// what tests run against.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/store"
	gocache "github.com/patrickmn/go-cache"
)

// entry carries its own expiry so a test clock can age it; go-cache's TTL
// only evicts.
type entry struct {
	val any
	exp time.Time // zero means no expiry
}

type Store struct {
	mu     sync.Mutex
	c      *gocache.Cache
	expiry map[string]time.Time // challenge id -> expires_at
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		c:      gocache.New(gocache.NoExpiration, time.Minute),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Sessions() store.Sessions       { return &sessionsRepo{s: s} }
func (s *Store) Challenges() store.Challenges   { return &challengesRepo{s: s} }
func (s *Store) OAuthStates() store.OAuthStates { return &oauthStatesRepo{s: s} }
func (s *Store) Counters() store.Counters       { return &countersRepo{s: s} }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Flush()
	return nil
}

// The helpers below expect s.mu to be held.

func (s *Store) get(key string) (any, bool) {
	it, ok := s.c.Get(key)
	if !ok {
		return nil, false
	}
	e := it.(entry)
	if !e.exp.IsZero() && !s.now().Before(e.exp) {
		s.c.Delete(key)
		return nil, false
	}
	return e.val, true
}

func (s *Store) set(key string, val any, ttl time.Duration) {
	if ttl <= 0 {
		s.c.Set(key, entry{val: val}, gocache.NoExpiration)
		return
	}
	s.c.Set(key, entry{val: val, exp: s.now().Add(ttl)}, ttl)
}

// ttl returns the remaining lifetime of key, or -1 when it never expires.
func (s *Store) ttl(key string) (time.Duration, bool) {
	it, ok := s.c.Get(key)
	if !ok {
		return 0, false
	}
	e := it.(entry)
	if e.exp.IsZero() {
		return -1, true
	}
	left := e.exp.Sub(s.now())
	if left <= 0 {
		s.c.Delete(key)
		return 0, false
	}
	return left, true
}

// replace swaps the value of key keeping its expiry.
func (s *Store) replace(key string, val any) bool {
	left, ok := s.ttl(key)
	if !ok {
		return false
	}
	if left < 0 {
		left = 0
	}
	s.set(key, val, left)
	return true
}

func (s *Store) delete(key string) bool {
	_, ok := s.get(key)
	s.c.Delete(key)
	return ok
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return store.ErrUnavailable
	}
	return nil
}

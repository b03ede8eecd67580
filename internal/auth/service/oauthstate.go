package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/metrics"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/retryx"
)

// DefaultOAuthStateTTL bounds how long a user may sit on the consent screen.
const DefaultOAuthStateTTL = 10 * time.Minute

// OAuthStateCache holds OAuth state between the redirect and the callback.
// Every state is consumed at most once, across all instances.
type OAuthStateCache struct {
	States  store.OAuthStates
	Retry   retryx.Policy
	Metrics *metrics.Metrics
	TTL     time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

func NewOAuthStateCache(states store.OAuthStates, ttl time.Duration, retry retryx.Policy, m *metrics.Metrics) *OAuthStateCache {
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}
	return &OAuthStateCache{States: states, Retry: retry, Metrics: m, TTL: ttl, Now: time.Now}
}

func (c *OAuthStateCache) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Issue mints a state and CSRF token, plus a PKCE pair when pkce is set.
func (c *OAuthStateCache) Issue(ctx context.Context, redirectURI string, pkce bool) (domain.OAuthState, error) {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}

	stateToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.OAuthState{}, fmt.Errorf("generate state token: %w", err)
	}
	csrfToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.OAuthState{}, fmt.Errorf("generate csrf token: %w", err)
	}

	now := c.now()
	state := domain.OAuthState{
		StateToken:  stateToken,
		CSRFToken:   csrfToken,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if pkce {
		verifier, err := cryptox.GeneratePKCEVerifier()
		if err != nil {
			return domain.OAuthState{}, fmt.Errorf("generate pkce verifier: %w", err)
		}
		state.PKCEVerifier = verifier
		state.PKCEChallenge = cryptox.PKCEChallengeS256(verifier)
	}

	err = c.Retry.Do(ctx, "oauth_state.put", func(ctx context.Context) error {
		return c.States.PutState(ctx, state, ttl)
	})
	if err != nil {
		return domain.OAuthState{}, mapStoreErr(err)
	}

	c.Metrics.OAuthState(metrics.OAuthStateIssued)
	return state, nil
}

// ConsumeOnce returns and deletes the state for token. An absent or expired
// state is ErrNotFound; a second consume of the same token always fails.
func (c *OAuthStateCache) ConsumeOnce(ctx context.Context, token string) (domain.OAuthState, error) {
	if token == "" {
		c.Metrics.OAuthState(metrics.OAuthStateMissing)
		return domain.OAuthState{}, fmt.Errorf("%w: empty state token", ErrNotFound)
	}

	// A retried GETDEL whose first reply was lost reads nothing; the state
	// is gone, so the flow fails closed.
	state, err := retryx.DoValue(ctx, c.Retry, "oauth_state.take", func(ctx context.Context) (domain.OAuthState, error) {
		return c.States.TakeState(ctx, token)
	})
	if errors.Is(err, store.ErrNotFound) {
		c.Metrics.OAuthState(metrics.OAuthStateMissing)
		return domain.OAuthState{}, mapStoreErr(err)
	}
	if err != nil {
		return domain.OAuthState{}, mapStoreErr(err)
	}

	if state.IsExpired(c.now()) {
		c.Metrics.OAuthState(metrics.OAuthStateMissing)
		return domain.OAuthState{}, fmt.Errorf("%w: state expired", ErrNotFound)
	}

	c.Metrics.OAuthState(metrics.OAuthStateConsumed)
	return state, nil
}

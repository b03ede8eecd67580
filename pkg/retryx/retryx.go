// Package retryx is the single retry policy used around key-value store
// calls: jittered exponential backoff over a bounded number of attempts,
// retrying only errors the caller marks as transient.
package retryx

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default policy values.
const (
	DefaultAttempts = 3
	DefaultInitial  = 50 * time.Millisecond
	DefaultMax      = time.Second
)

// Policy configures Do.
type Policy struct {
	// Attempts is the total number of tries including the first one.
	Attempts int
	Initial  time.Duration
	Max      time.Duration

	// Retryable reports whether err is transient. Nil retries nothing.
	Retryable func(error) bool

	// Logger receives a debug line per retry. Nil means slog.Default.
	Logger *slog.Logger
}

// New returns a Policy with the default timings.
func New(retryable func(error) bool) Policy {
	return Policy{
		Attempts:  DefaultAttempts,
		Initial:   DefaultInitial,
		Max:       DefaultMax,
		Retryable: retryable,
	}
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Initial
	eb.MaxInterval = p.Max
	eb.MaxElapsedTime = 0

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx) // #nosec G115 - clamped above
}

// Do runs op until it succeeds, returns a non-retryable error or exhausts
// the policy, and returns op's last error. A done ctx stops retrying and
// its error is returned instead.
func (p Policy) Do(ctx context.Context, name string, op func(context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backoff(ctx), func(err error, wait time.Duration) {
		logger.DebugContext(ctx, "retrying store call",
			"op", name,
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"err", err,
		)
	})
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

package retryx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/retryx"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func fastPolicy() retryx.Policy {
	p := retryx.New(func(err error) bool { return errors.Is(err, errTransient) })
	p.Initial = time.Millisecond
	p.Max = 2 * time.Millisecond
	return p
}

func TestDo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{"succeeds first try", nil, 1, nil},
		{"recovers from transient", []error{errTransient, errTransient}, 3, nil},
		{"exhausts attempts", []error{errTransient, errTransient, errTransient, errTransient}, 3, errTransient},
		{"stops on fatal", []error{errFatal}, 1, errFatal},
		{"fatal after transient", []error{errTransient, errFatal}, 2, errFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := fastPolicy().Do(context.Background(), "test", func(context.Context) error {
				defer func() { calls++ }()
				if calls < len(tt.failures) {
					return tt.failures[calls]
				}
				return nil
			})

			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDoNilRetryable(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retryx.Policy{Attempts: 5}.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	require.Equal(t, 1, calls)
}

func TestDoContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy()
	p.Attempts = 100

	calls := 0
	err := p.Do(ctx, "test", func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errTransient
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, calls, 100)
}

func TestDoValue(t *testing.T) {
	t.Parallel()

	calls := 0
	v, err := retryx.DoValue(context.Background(), fastPolicy(), "test", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

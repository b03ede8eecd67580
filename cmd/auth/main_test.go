package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/auth/app"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/stretchr/testify/require"
)

func TestStartupExit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		want   int
		logged []string
	}{
		{
			name:   "validation problems",
			err:    &app.ConfigurationError{Problems: []string{"JWT_SECRET is required", "REFRESH_TTL must be positive"}},
			want:   exitConfig,
			logged: []string{"JWT_SECRET is required", "REFRESH_TTL must be positive"},
		},
		{
			name:   "token service rejects keys",
			err:    fmt.Errorf("%w: token signer and verifier are required", service.ErrConfiguration),
			want:   exitConfig,
			logged: []string{"token signer and verifier are required"},
		},
		{
			name:   "store unreachable",
			err:    errors.New("redis: connection refused"),
			want:   exitRuntime,
			logged: []string{"startup failed", "connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, nil))

			require.Equal(t, tt.want, startupExit(log, tt.err))
			for _, s := range tt.logged {
				require.Contains(t, buf.String(), s)
			}
		})
	}
}

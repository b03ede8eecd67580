package slogx

import (
	"context"
	"log/slog"
)

// loggerKey carries the request-scoped *slog.Logger.
type loggerKey struct{}

// WithContext returns a child of ctx holding logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext never returns nil. Without a stored logger it falls back to
// slog.Default, which New replaces at startup.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// With binds args to the logger in ctx so later FromContext calls include
// them. Without args ctx is returned unchanged.
func With(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	return WithContext(ctx, FromContext(ctx).With(args...))
}

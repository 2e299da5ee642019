// Package requestctx carries the request id from the HTTP edge into domain code.
package requestctx

import (
	"context"
	"log/slog"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logger returns the default logger tagged with the request id of ctx, when there is one.
func Logger(ctx context.Context, args ...any) *slog.Logger {
	if id := GetRequestID(ctx); id != "" {
		args = append([]any{"requestId", id}, args...)
	}
	return slog.With(args...)
}

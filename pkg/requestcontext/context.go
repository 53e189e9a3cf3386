// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services and handlers read them.
//
//	actor := requestcontext.Actor(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	"certtrace/pkg/domain"
)

type key int

const (
	actorKey key = iota
	requestIDKey
	requestTimeKey
)

// Actor returns the authenticated caller address, or the zero address.
func Actor(ctx context.Context) domain.Address {
	if a, ok := ctx.Value(actorKey).(domain.Address); ok {
		return a
	}
	return domain.ZeroAddress
}

// WithActor injects the authenticated caller.
func WithActor(ctx context.Context, actor domain.Address) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// RequestID returns the request correlation ID, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now returns the request-scoped time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}

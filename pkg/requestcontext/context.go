// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// Values are set by whatever drives the core (a CLI, a worker, a test) and read
// by services. Keeping this package free of net/http lets services import only
// what they need.
//
//	requestID := requestcontext.RequestID(ctx)
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests pin the clock:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyActor       = actorKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Actor retrieves the acting principal (user, reviewer, or "system").
// Returns "system" when not set.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(ContextKeyActor).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

// WithActor records the acting principal for audit and history entries.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, sweepers).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Used by tests and by the expiry sweeper so a whole batch shares one instant.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

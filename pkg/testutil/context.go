package testutil

import (
	"context"
	"time"

	"rwagate/pkg/requestcontext"
)

// FixedTime is the instant most service tests run at: mid-morning UTC on a
// weekday, far enough from midnight that day windows are unambiguous.
var FixedTime = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

// ContextAt returns a background context pinned to the given request time.
func ContextAt(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}

// ContextAs returns a context pinned to FixedTime carrying an actor and request ID.
func ContextAs(actor string) context.Context {
	ctx := ContextAt(FixedTime)
	ctx = requestcontext.WithActor(ctx, actor)
	return requestcontext.WithRequestID(ctx, "req-"+actor)
}

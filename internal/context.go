package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/claims-management/internal/core/identity"
)

type ctxKey string

const ContextActorKey ctxKey = "actor"

// ActorFromContext returns the authenticated actor placed by the auth middleware.
func ActorFromContext(ctx context.Context) (identity.Actor, bool) {
	if ctx == nil {
		return identity.Actor{}, false
	}
	actor, ok := ctx.Value(ContextActorKey).(identity.Actor)
	return actor, ok
}

func ContextWithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}

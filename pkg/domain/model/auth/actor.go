package auth

import "context"

type ctxActorKey struct{}

// AnonymousActor is used when the request carries no actor
const AnonymousActor = "anonymous"

// WithActor stores the acting user name in ctx
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxActorKey{}, actor)
}

// ActorFromContext returns the acting user, or AnonymousActor if none was set
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(ctxActorKey{}).(string); ok && actor != "" {
		return actor
	}
	return AnonymousActor
}

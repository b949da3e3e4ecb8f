package req

import "context"

type actorKey struct{}

// SystemActor is recorded in history when no actor is attached to the context.
const SystemActor = "system"

// WithActor returns a context that attributes mutations to actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached by WithActor, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

// Package ctxutil provides context utilities that can be safely imported anywhere.
// It has no internal dependencies so the storage layer can read the caller without
// importing the identity package.
package ctxutil

import "context"

type actorKey struct{}

type requestIDKey struct{}

// Actor is the signed-in operator a request runs on behalf of.
type Actor struct {
	ID    string
	Email string
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor and whether one is present with a non-empty ID.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, false
	}
	return actor, true
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

package docstore

import (
	"context"

	"journey/api/internal/config"
	"journey/api/internal/ctxutil"
)

// RequireActor rejects writes that do not carry a signed-in actor in their context. Reads stay
// public.
func RequireActor(s Store) Store {
	return guarded{Store: s}
}

type guarded struct {
	Store
}

func (g guarded) Put(ctx context.Context, doc Document) error {
	if _, ok := ctxutil.ActorFromContext(ctx); !ok {
		return ErrPermissionDenied
	}
	return g.Store.Put(ctx, doc)
}

// Unconfigured fails every call with config.ErrNotConfigured without touching the network.
func Unconfigured() Store {
	return unconfigured{}
}

type unconfigured struct{}

func (unconfigured) Get(context.Context) (Document, error) { return Document{}, config.ErrNotConfigured }
func (unconfigured) Put(context.Context, Document) error   { return config.ErrNotConfigured }
func (unconfigured) Ping(context.Context) error            { return config.ErrNotConfigured }
func (unconfigured) Close() error                          { return nil }

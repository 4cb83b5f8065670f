package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"journey/api/internal/app"
	"journey/api/internal/cache"
	"journey/api/internal/config"
	"journey/api/internal/docstore"
	"journey/api/internal/identity"
	"journey/api/internal/metrics"
	"journey/api/internal/session"
	"journey/api/internal/store"
)

// backends holds the storage and sign-in providers selected by configuration.
type backends struct {
	docs      docstore.Store
	identity  app.Identities
	cache     cache.Provider
	operators *store.SQLStore
	closers   []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openBackends connects the configured document store, session store and operator accounts.
// With missing provider settings it returns the not-configured stand-ins instead, so the
// service still starts and serves the compiled default journey.
func openBackends(ctx context.Context, cfg config.Config, log zerolog.Logger, m metrics.Provider) (*backends, error) {
	b := &backends{
		cache: cache.WithMetrics(cache.New(cfg.Cards.CacheSizeMB, cfg.Cards.CacheTTL), m),
	}

	if problems := cfg.Problems(); len(problems) > 0 {
		for _, problem := range problems {
			log.Warn().Str("problem", problem).Msg("running in degraded mode")
		}
		b.docs = docstore.Unconfigured()
		b.identity = identity.Unconfigured{}
		return b, nil
	}

	docs, err := b.openDocStore(ctx, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, docs.Close)
	b.docs = docstore.RequireActor(docs)

	var sessions session.Store = session.NewMemoryStore()
	if cfg.Auth.SessionRedisURL != "" {
		redisSessions, err := session.NewRedisStore(cfg.Auth.SessionRedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, redisSessions.Close)
		sessions = redisSessions
		log.Info().Msg("using redis for sessions")
	}

	var operators identity.OperatorStore
	if b.operators != nil {
		operators = b.operators
	}
	operators = identity.WithStaticOperators(operators, identity.StaticOperator{
		Email:        cfg.Auth.OperatorEmail,
		PasswordHash: cfg.Auth.OperatorPasswordHash,
	})
	b.identity = identity.NewService(operators, sessions, cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	return b, nil
}

func (b *backends) openDocStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return docstore.NewMemoryStore(), nil
	case "redis":
		return docstore.NewRedisStore(ctx, cfg.Store.RedisURL)
	case "minio":
		return docstore.NewMinioStore(ctx, docstore.MinioOptions{
			Endpoint:  cfg.Store.Minio.Endpoint,
			AccessKey: cfg.Store.Minio.AccessKey,
			SecretKey: cfg.Store.Minio.SecretKey,
			Bucket:    cfg.Store.Minio.Bucket,
			UseSSL:    cfg.Store.Minio.UseSSL,
		})
	case "postgres", "sqlite":
		db, driver, err := openSQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.operators = store.NewSQLStore(db, driver)
		return docstore.NewSQLStore(db, docstore.Dialect(driver)), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// openSQL opens the configured SQL database and brings its schema up to date.
func openSQL(ctx context.Context, cfg config.Config) (*sql.DB, store.Driver, error) {
	var (
		driver store.Driver
		url    string
	)
	switch cfg.Store.Driver {
	case "postgres":
		driver, url = store.DriverPostgres, cfg.Store.DatabaseURL
	case "sqlite":
		driver, url = store.DriverSQLite, cfg.SQLitePath()
	default:
		return nil, "", fmt.Errorf("store driver %q has no SQL database", cfg.Store.Driver)
	}

	db, err := store.Open(ctx, driver, url)
	if err != nil {
		return nil, "", fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, driver, migrationsFS(cfg, driver)); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("migrations failed: %w", err)
	}
	return db, driver, nil
}

func migrationsFS(cfg config.Config, driver store.Driver) fs.FS {
	if cfg.Migrations.Dir != "" {
		return os.DirFS(cfg.Migrations.Dir)
	}
	return store.Migrations(driver)
}

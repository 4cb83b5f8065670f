package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey/api/internal/app"
	"journey/api/internal/config"
	"journey/api/internal/ctxutil"
	"journey/api/internal/docstore"
	"journey/api/internal/identity"
	"journey/api/internal/journey"
	"journey/api/internal/metrics"
)

func testConfig(driver string) config.Config {
	return config.Config{
		Store: config.StoreConfig{
			Driver:      driver,
			DatabaseURL: "file::memory:",
			Timeout:     time.Second,
		},
		Cards: config.CardsConfig{CacheTTL: time.Minute, CacheSizeMB: 1},
		Auth: config.AuthConfig{TokenSecret: "test-secret", TokenTTL: time.Hour},
	}
}

func TestOpenBackendsDegraded(t *testing.T) {
	cfg := testConfig("memory")
	cfg.Auth.TokenSecret = ""

	b, err := openBackends(context.Background(), cfg, zerolog.Nop(), metrics.Noop())
	require.NoError(t, err)
	defer b.Close()

	_, err = b.docs.Get(context.Background())
	assert.ErrorIs(t, err, config.ErrNotConfigured)
	_, _, err = b.identity.SignIn(context.Background(), "gift@example.com", "sunshine-4-days")
	assert.ErrorIs(t, err, config.ErrNotConfigured)
}

func TestOpenBackendsGuardsWrites(t *testing.T) {
	b, err := openBackends(context.Background(), testConfig("memory"), zerolog.Nop(), metrics.Noop())
	require.NoError(t, err)
	defer b.Close()

	doc := docstore.FromState(journey.DefaultState(), time.Now())
	assert.ErrorIs(t, b.docs.Put(context.Background(), doc), docstore.ErrPermissionDenied)

	ctx := ctxutil.WithActor(context.Background(), ctxutil.Actor{ID: "op_1", Email: "gift@example.com"})
	require.NoError(t, b.docs.Put(ctx, doc))
	got, err := b.docs.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnlockedDays)
}

func TestOpenBackendsSQLiteOperators(t *testing.T) {
	cfg := testConfig("sqlite")
	hash, err := identity.HashPassword("sunshine-4-days")
	require.NoError(t, err)
	cfg.Auth.OperatorEmail = "bootstrap@example.com"
	cfg.Auth.OperatorPasswordHash = hash

	b, err := openBackends(context.Background(), cfg, zerolog.Nop(), metrics.Noop())
	require.NoError(t, err)
	defer b.Close()
	require.NotNil(t, b.operators)

	id, token, err := b.identity.SignIn(context.Background(), "bootstrap@example.com", "sunshine-4-days")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "bootstrap@example.com", id.Email)

	_, _, err = b.identity.SignIn(context.Background(), "nobody@example.com", "sunshine-4-days")
	assert.True(t, errors.Is(err, identity.ErrInvalidCredentials))
}

func TestStateRoundTripThroughService(t *testing.T) {
	b, err := openBackends(context.Background(), testConfig("sqlite"), zerolog.Nop(), metrics.Noop())
	require.NoError(t, err)
	defer b.Close()

	ctx := ctxutil.WithActor(context.Background(), ctxutil.Actor{ID: "op_1", Email: "gift@example.com"})
	first := app.NewService(app.Options{Store: b.docs, Identity: b.identity, Logger: zerolog.Nop()})
	defer first.Close()
	first.Bootstrap(ctx)

	draft := first.State()
	draft.UnlockedThroughDay = 3
	draft.Greetings[2].Title = "Wednesday"
	require.NoError(t, first.Commit(ctx, draft))

	second := app.NewService(app.Options{Store: b.docs, Identity: b.identity, Logger: zerolog.Nop()})
	defer second.Close()
	second.Bootstrap(context.Background())
	assert.Equal(t, app.SourceStore, second.Source())
	assert.Equal(t, draft, second.State())
}

func TestPrintState(t *testing.T) {
	color.NoColor = true
	state := journey.DefaultState()
	state.UnlockedThroughDay = 2

	var buf bytes.Buffer
	now := time.Date(2026, 5, 1, 22, 30, 0, 0, time.Local)
	printState(&buf, state, app.SourceStore, now)
	out := buf.String()

	assert.Contains(t, out, "2 of 4 days unlocked, 50%")
	assert.Contains(t, out, "unlocked  💛 Day 1")
	assert.Contains(t, out, "current   💗 Day 2")
	assert.Contains(t, out, "locked    🌟 Day 3")
	assert.Contains(t, out, "Next day unlocks in 1h 30m 0s")

	buf.Reset()
	state.UnlockedThroughDay = journey.TotalDays
	printState(&buf, state, app.SourceStore, now)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(buf.String()), "Journey complete"))
}

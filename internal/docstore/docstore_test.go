package docstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey/api/internal/config"
	"journey/api/internal/ctxutil"
	"journey/api/internal/journey"
	"journey/api/internal/store"
)

func sampleDocument() Document {
	s := journey.DefaultState()
	s.UnlockedThroughDay = 3
	s.Greetings[1].GreetingLine = "Hi there"
	return FromState(s, time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC))
}

// exerciseStore checks the contract every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	doc := sampleDocument()
	require.NoError(t, s.Put(ctx, doc))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.UnlockedDays, got.UnlockedDays)
	assert.Equal(t, doc.Greetings, got.Greetings)
	assert.True(t, doc.UpdatedAt.Equal(got.UpdatedAt))

	// Full replace: a later document with fewer records leaves nothing of the first behind.
	second := Document{Greetings: doc.Greetings[:1], UnlockedDays: 1, UpdatedAt: doc.UpdatedAt.Add(time.Minute)}
	require.NoError(t, s.Put(ctx, second))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Greetings, 1)
	assert.Equal(t, 1, got.UnlockedDays)

	require.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(ctx, db, store.DriverSQLite, store.Migrations(store.DriverSQLite)))

	exerciseStore(t, NewSQLStore(db, DialectSQLite))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStoreWithClient(client)
	exerciseStore(t, s)
	assert.True(t, mr.Exists("journeyData:main"))
}

func TestRedisStoreConnectionFailureIsStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewRedisStoreWithClient(client)
	mr.Close()

	err := s.Put(context.Background(), sampleDocument())
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "put", se.Op)
	assert.False(t, errors.Is(err, ErrPermissionDenied))
}

func TestMapRedisErrPermission(t *testing.T) {
	err := mapRedisErr("put", errors.New("NOPERM this user has no permissions to run the 'set' command"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRequireActor(t *testing.T) {
	inner := NewMemoryStore()
	s := RequireActor(inner)

	err := s.Put(context.Background(), sampleDocument())
	require.ErrorIs(t, err, ErrPermissionDenied)
	_, err = inner.Get(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	ctx := ctxutil.WithActor(context.Background(), ctxutil.Actor{ID: "op_1"})
	require.NoError(t, s.Put(ctx, sampleDocument()))
	_, err = s.Get(context.Background())
	require.NoError(t, err)
}

func TestUnconfigured(t *testing.T) {
	s := Unconfigured()
	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, config.ErrNotConfigured)
	assert.ErrorIs(t, s.Put(context.Background(), Document{}), config.ErrNotConfigured)
}

func TestStoreErrorWrapping(t *testing.T) {
	base := errors.New("disk full")
	err := storeErr("put", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "docstore put: disk full", err.Error())
	assert.Same(t, ErrPermissionDenied, storeErr("put", ErrPermissionDenied))
	assert.NoError(t, storeErr("put", nil))
}

func TestDocumentStateRoundTrip(t *testing.T) {
	s := journey.DefaultState()
	s.UnlockedThroughDay = 2
	doc := FromState(s, time.Now())
	body, err := Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"unlockedDays":2`)
	assert.Contains(t, string(body), `"decorativeEmojis"`)

	back, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, s, back.State())
}

func TestMapMinioErr(t *testing.T) {
	assert.ErrorIs(t, mapMinioErr("get", minio.ErrorResponse{Code: "NoSuchKey"}), ErrNotFound)
	assert.ErrorIs(t, mapMinioErr("put", minio.ErrorResponse{Code: "AccessDenied"}), ErrPermissionDenied)

	var se *StoreError
	require.ErrorAs(t, mapMinioErr("ping", errors.New("dial tcp: connection refused")), &se)
	assert.Equal(t, "ping", se.Op)
}

func TestMinioStore(t *testing.T) {
	endpoint := os.Getenv("JOURNEY_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("JOURNEY_TEST_MINIO_ENDPOINT is not set")
	}
	s, err := NewMinioStore(context.Background(), MinioOptions{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("JOURNEY_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("JOURNEY_TEST_MINIO_SECRET_KEY"),
		Bucket:    "journey-test-" + time.Now().Format("20060102150405"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

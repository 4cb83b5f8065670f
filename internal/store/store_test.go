package store

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ApplyMigrations(ctx, db, DriverSQLite, Migrations(DriverSQLite)))
	return db
}

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	for _, driver := range []Driver{DriverPostgres, DriverSQLite} {
		entries, err := fs.ReadDir(Migrations(driver), ".")
		require.NoErrorf(t, err, "read %s migrations", driver)

		byVersion := map[string]map[string]bool{}
		for _, entry := range entries {
			match := pattern.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			if byVersion[match[1]] == nil {
				byVersion[match[1]] = map[string]bool{}
			}
			byVersion[match[1]][match[2]] = true
		}
		require.NotEmptyf(t, byVersion, "no %s migrations discovered", driver)
		for version, dirs := range byVersion {
			assert.Truef(t, dirs["up"] && dirs["down"], "%s version %s must include both up and down files", driver, version)
		}
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, ApplyMigrations(context.Background(), db, DriverSQLite, Migrations(DriverSQLite)))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestOperators(t *testing.T) {
	ctx := context.Background()
	s := NewSQLStore(openTestDB(t), DriverSQLite)

	require.NoError(t, s.CreateOperator(ctx, Operator{ID: "op_1", Email: " Gift@Example.com ", PasswordHash: "hash"}))
	err := s.CreateOperator(ctx, Operator{ID: "op_2", Email: "gift@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.GetOperatorByEmail(ctx, "GIFT@example.com")
	require.NoError(t, err)
	assert.Equal(t, "op_1", got.ID)
	assert.Equal(t, "gift@example.com", got.Email)
	assert.Nil(t, got.LastSignInAt, "expected no sign-in yet")

	require.NoError(t, s.TouchSignIn(ctx, "op_1", time.Now()))
	require.NoError(t, s.UpsertOperator(ctx, Operator{ID: "op_3", Email: "gift@example.com", PasswordHash: "rotated"}))

	list, err := s.ListOperators(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rotated", list[0].PasswordHash)
	assert.NotNil(t, list[0].LastSignInAt)

	_, err = s.GetOperatorByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRebind(t *testing.T) {
	q := `UPDATE operators SET last_sign_in_at = $1 WHERE id = $2`
	assert.Equal(t, q, Rebind(DriverPostgres, q))
	assert.NotContains(t, Rebind(DriverSQLite, q), "$")
}

func TestMigrationsPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("JOURNEY_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("JOURNEY_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, ApplyMigrations(ctx, db, DriverPostgres, Migrations(DriverPostgres)))
	_, err = NewSQLStore(db, DriverPostgres).ListOperators(ctx)
	assert.NoError(t, err)
}

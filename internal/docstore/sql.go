package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore keeps the document in the documents table created by the store migrations.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	getSQL  string
	putSQL  string
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	s := &SQLStore{db: db, dialect: dialect}
	switch dialect {
	case DialectPostgres:
		s.getSQL = `SELECT body::text FROM documents WHERE collection = $1 AND id = $2`
		s.putSQL = `INSERT INTO documents (collection, id, body, updated_at) VALUES ($1, $2, $3::jsonb, $4)
ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
	default:
		s.getSQL = `SELECT body FROM documents WHERE collection = ? AND id = ?`
		s.putSQL = `INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
	}
	return s
}

func (s *SQLStore) Get(ctx context.Context) (Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.getSQL, Collection, DocumentID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, s.mapErr("get", err)
	}
	doc, err := Decode([]byte(body))
	if err != nil {
		return Document{}, storeErr("get", err)
	}
	return doc, nil
}

func (s *SQLStore) Put(ctx context.Context, doc Document) error {
	body, err := Encode(doc)
	if err != nil {
		return storeErr("put", err)
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, s.putSQL, Collection, DocumentID, string(body), updatedAt); err != nil {
		return s.mapErr("put", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.mapErr("ping", err)
	}
	return nil
}

// Close is a no-op; the *sql.DB belongs to the caller.
func (s *SQLStore) Close() error { return nil }

func (s *SQLStore) mapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pgErr.Message)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_AUTH:
			return fmt.Errorf("%w: %s", ErrPermissionDenied, liteErr.Error())
		}
	}
	return storeErr(op, err)
}

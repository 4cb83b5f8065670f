package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// SQLStore holds operator accounts.
type SQLStore struct {
	db     *sql.DB
	driver Driver
}

func NewSQLStore(db *sql.DB, driver Driver) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Driver() Driver {
	return s.driver
}

func (s *SQLStore) q(query string) string {
	return Rebind(s.driver, query)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *SQLStore) CreateOperator(ctx context.Context, op Operator) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	email := normalizeEmail(op.Email)
	var exists int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM operators WHERE email = $1`), email).Scan(&exists); err != nil {
		return fmt.Errorf("lookup operator: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("operator %s: %w", email, ErrConflict)
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO operators (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`), op.ID, email, op.PasswordHash, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

// UpsertOperator creates the operator or replaces the password hash of an existing one.
func (s *SQLStore) UpsertOperator(ctx context.Context, op Operator) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO operators (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET password_hash = excluded.password_hash
	`), op.ID, normalizeEmail(op.Email), op.PasswordHash, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert operator: %w", err)
	}
	return nil
}

func (s *SQLStore) GetOperatorByEmail(ctx context.Context, email string) (Operator, error) {
	var op Operator
	var lastSignIn sql.NullTime
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, email, password_hash, created_at, last_sign_in_at
		FROM operators WHERE email = $1
	`), normalizeEmail(email)).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt, &lastSignIn)
	if errors.Is(err, sql.ErrNoRows) {
		return Operator{}, ErrNotFound
	}
	if err != nil {
		return Operator{}, fmt.Errorf("get operator: %w", err)
	}
	if lastSignIn.Valid {
		op.LastSignInAt = &lastSignIn.Time
	}
	return op, nil
}

func (s *SQLStore) TouchSignIn(ctx context.Context, operatorID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE operators SET last_sign_in_at = $1 WHERE id = $2`), at.UTC(), operatorID)
	if err != nil {
		return fmt.Errorf("touch operator sign-in: %w", err)
	}
	return nil
}

func (s *SQLStore) ListOperators(ctx context.Context) ([]Operator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, password_hash, created_at, last_sign_in_at FROM operators ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var out []Operator
	for rows.Next() {
		var op Operator
		var lastSignIn sql.NullTime
		if err := rows.Scan(&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt, &lastSignIn); err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		if lastSignIn.Valid {
			op.LastSignInAt = &lastSignIn.Time
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

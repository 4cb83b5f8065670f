package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) sqlName() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

func Open(ctx context.Context, driver Driver, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open(driver.sqlName(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between the pool's connections.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

var placeholder = regexp.MustCompile(`\$\d+`)

// Rebind rewrites $1-style placeholders for drivers that only take "?". Queries passed here use
// each placeholder once and in order.
func Rebind(driver Driver, query string) string {
	if driver == DriverPostgres {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

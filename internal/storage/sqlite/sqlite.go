// Package sqlite registers the "sqlite" storage kind, backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
	"rosteretl/internal/storage/sqlrepo"
)

// Dialect is the SQLite dialect.
var Dialect = sqlrepo.Dialect{
	Name:     "sqlite",
	BindType: sqlx.QUESTION,
	Quote:    sqlrepo.QuoteDouble,
	IDColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
	Types: map[schema.ColumnType]string{
		schema.Integer:   "INTEGER",
		schema.Text:      "TEXT",
		schema.Timestamp: "TIMESTAMP",
	},
	IDStyle: sqlrepo.LastInsertID,
}

// openDB is a test hook that points to Open by default.
var openDB = Open

// Open connects to dsn ("etl.db", "file:etl.db?cache=shared", ":memory:").
// The pool is limited to one connection so an in-memory database is shared
// by every statement and transaction.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return db, nil
}

// NewRepository opens dsn and wraps it as a repository.
func NewRepository(ctx context.Context, dsn string) (*sqlrepo.Repo, error) {
	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return sqlrepo.New(db, Dialect, nil), nil
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

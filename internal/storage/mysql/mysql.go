// Package mysql registers the "mysql" storage kind.
package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
	"rosteretl/internal/storage/sqlrepo"
)

// Dialect is the MySQL dialect. Text columns are VARCHAR so they can take
// part in unique keys.
var Dialect = sqlrepo.Dialect{
	Name:     "mysql",
	BindType: sqlx.QUESTION,
	Quote:    sqlrepo.QuoteBacktick,
	IDColumn: "BIGINT AUTO_INCREMENT PRIMARY KEY",
	Types: map[schema.ColumnType]string{
		schema.Integer:   "BIGINT",
		schema.Text:      "VARCHAR(255)",
		schema.Timestamp: "DATETIME(6)",
	},
	IDStyle: sqlrepo.LastInsertID,
}

// openDB is a test hook that points to open by default.
var openDB = open

// parseDSN normalizes dsn (user:pass@tcp(host:3306)/etl) for the loaders:
// times are parsed, and UPDATE reports matched rather than changed rows so
// rewriting a row with the same values is not mistaken for a missing row.
func parseDSN(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg, nil
}

func open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	cfg, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// NewRepository connects to dsn.
func NewRepository(ctx context.Context, dsn string) (*sqlrepo.Repo, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return sqlrepo.New(db, Dialect, nil), nil
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

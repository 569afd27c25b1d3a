package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
)

// Field aliases storage.Field for brevity within the package.
type Field = storage.Field

// Repo is a storage.Repository backed by a *sqlx.DB.
type Repo struct {
	db      *sqlx.DB
	dialect Dialect
	closeFn func()
}

var _ storage.Repository = (*Repo)(nil)

// New wraps db. closeFn runs on Close; when nil, Close closes db.
func New(db *sqlx.DB, d Dialect, closeFn func()) *Repo {
	if closeFn == nil {
		closeFn = func() { _ = db.Close() }
	}
	return &Repo{db: db, dialect: d, closeFn: closeFn}
}

// DB exposes the underlying handle.
func (r *Repo) DB() *sqlx.DB { return r.db }

// Dialect returns the repository's dialect.
func (r *Repo) Dialect() Dialect { return r.dialect }

func (r *Repo) store() *store { return &store{ext: r.db, d: &r.dialect} }

func (r *Repo) FindID(ctx context.Context, table string, key []Field) (int64, bool, error) {
	return r.store().FindID(ctx, table, key)
}

func (r *Repo) Insert(ctx context.Context, table string, fields []Field) (int64, error) {
	return r.store().Insert(ctx, table, fields)
}

func (r *Repo) Update(ctx context.Context, table string, id int64, fields []Field) error {
	return r.store().Update(ctx, table, id, fields)
}

// InTx implements storage.Repository.
func (r *Repo) InTx(ctx context.Context, fn func(storage.Store) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", r.dialect.Name, err)
	}
	if err := fn(&store{ext: tx, d: &r.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("%s: rollback: %w", r.dialect.Name, rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", r.dialect.Name, err)
	}
	return nil
}

// EnsureSchema implements storage.Repository.
func (r *Repo) EnsureSchema(ctx context.Context, tables []schema.Table) error {
	for _, t := range tables {
		ddl, err := r.dialect.CreateTable(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("%s: create table %s: %w", r.dialect.Name, t.Name, err)
		}
	}
	return nil
}

// Close implements storage.Repository.
func (r *Repo) Close() { r.closeFn() }

// store runs statements on either the database or a transaction.
type store struct {
	ext sqlx.ExtContext
	d   *Dialect
}

func (s *store) FindID(ctx context.Context, table string, key []Field) (int64, bool, error) {
	if len(key) == 0 {
		return 0, false, fmt.Errorf("%s: find %s: empty key", s.d.Name, table)
	}
	q, args := s.d.findID(table, key)
	var id int64
	err := sqlx.GetContext(ctx, s.ext, &id, sqlx.Rebind(s.d.BindType, q), args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("%s: find %s: %w", s.d.Name, table, err)
	}
	return id, true, nil
}

func (s *store) Insert(ctx context.Context, table string, fields []Field) (int64, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("%s: insert %s: no fields", s.d.Name, table)
	}
	q, args := s.d.insert(table, fields)
	q = sqlx.Rebind(s.d.BindType, q)

	if s.d.IDStyle == LastInsertID {
		res, err := s.ext.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("%s: insert %s: %w", s.d.Name, table, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("%s: insert %s: last insert id: %w", s.d.Name, table, err)
		}
		return id, nil
	}

	var id int64
	if err := sqlx.GetContext(ctx, s.ext, &id, q, args...); err != nil {
		return 0, fmt.Errorf("%s: insert %s: %w", s.d.Name, table, err)
	}
	return id, nil
}

func (s *store) Update(ctx context.Context, table string, id int64, fields []Field) error {
	if len(fields) == 0 {
		return nil
	}
	q, args := s.d.update(table, id, fields)
	res, err := s.ext.ExecContext(ctx, sqlx.Rebind(s.d.BindType, q), args...)
	if err != nil {
		return fmt.Errorf("%s: update %s: %w", s.d.Name, table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: update %s: no row with id %d", s.d.Name, table, id)
	}
	return nil
}

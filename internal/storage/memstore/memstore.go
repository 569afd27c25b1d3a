// Package memstore is an in-memory storage.Repository, registered as the
// "memory" kind. It enforces natural-key uniqueness like the SQL backends and
// is used for dry runs and tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
)

// Row is one stored row, keyed by column name. It always has an "id".
type Row map[string]any

type table struct {
	def    schema.Table
	nextID int64
	rows   map[int64]Row
}

func (t *table) clone() *table {
	c := &table{def: t.def, nextID: t.nextID, rows: make(map[int64]Row, len(t.rows))}
	for id, r := range t.rows {
		c.rows[id] = maps.Clone(r)
	}
	return c
}

// Repo is an in-memory repository. The zero value is not usable; call New.
type Repo struct {
	mu     sync.Mutex
	tables map[string]*table
}

var _ storage.Repository = (*Repo)(nil)

// New returns an empty repository with no tables.
func New() *Repo { return &Repo{tables: map[string]*table{}} }

func init() {
	storage.Register("memory", func(context.Context, storage.Config) (storage.Repository, error) {
		return New(), nil
	})
}

// EnsureSchema implements storage.Repository.
func (r *Repo) EnsureSchema(_ context.Context, tables []schema.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tables {
		if _, ok := r.tables[t.Name]; !ok {
			r.tables[t.Name] = &table{def: t, rows: map[int64]Row{}}
		}
	}
	return nil
}

func (r *Repo) FindID(ctx context.Context, name string, key []storage.Field) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&view{tables: r.tables}).FindID(ctx, name, key)
}

func (r *Repo) Insert(ctx context.Context, name string, fields []storage.Field) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&view{tables: r.tables}).Insert(ctx, name, fields)
}

func (r *Repo) Update(ctx context.Context, name string, id int64, fields []storage.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&view{tables: r.tables}).Update(ctx, name, id, fields)
}

// InTx runs fn on a copy of the data and keeps the copy only when fn
// succeeds. The repository is locked for the duration.
func (r *Repo) InTx(ctx context.Context, fn func(storage.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := make(map[string]*table, len(r.tables))
	for n, t := range r.tables {
		work[n] = t.clone()
	}
	if err := fn(&view{tables: work}); err != nil {
		return err
	}
	r.tables = work
	return nil
}

// Close implements storage.Repository.
func (r *Repo) Close() {}

// Rows returns copies of the rows of a table ordered by id.
func (r *Repo) Rows(name string) []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[name]
	if !ok {
		return nil
	}
	ids := slices.Sorted(maps.Keys(t.rows))
	out := make([]Row, len(ids))
	for i, id := range ids {
		out[i] = maps.Clone(t.rows[id])
	}
	return out
}

// Count returns the number of rows in a table.
func (r *Repo) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// view is a storage.Store over a set of tables; the caller holds the lock.
type view struct {
	tables map[string]*table
}

func (v *view) table(name string) (*table, error) {
	t, ok := v.tables[name]
	if !ok {
		return nil, fmt.Errorf("memory: no such table: %s", name)
	}
	return t, nil
}

func (v *view) FindID(_ context.Context, name string, key []storage.Field) (int64, bool, error) {
	t, err := v.table(name)
	if err != nil {
		return 0, false, err
	}
	if len(key) == 0 {
		return 0, false, fmt.Errorf("memory: find %s: empty key", name)
	}
	for _, id := range slices.Sorted(maps.Keys(t.rows)) {
		if matches(t.rows[id], key) {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (v *view) Insert(_ context.Context, name string, fields []storage.Field) (int64, error) {
	t, err := v.table(name)
	if err != nil {
		return 0, err
	}
	row := Row{}
	for _, c := range t.def.Columns {
		row[c.Name] = nil
	}
	if err := assign(t, row, fields); err != nil {
		return 0, fmt.Errorf("memory: insert %s: %w", name, err)
	}
	if err := checkRow(t, 0, row); err != nil {
		return 0, fmt.Errorf("memory: insert %s: %w", name, err)
	}
	t.nextID++
	row["id"] = t.nextID
	t.rows[t.nextID] = row
	return t.nextID, nil
}

func (v *view) Update(_ context.Context, name string, id int64, fields []storage.Field) error {
	t, err := v.table(name)
	if err != nil {
		return err
	}
	cur, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("memory: update %s: no row with id %d", name, id)
	}
	next := maps.Clone(cur)
	if err := assign(t, next, fields); err != nil {
		return fmt.Errorf("memory: update %s: %w", name, err)
	}
	if err := checkRow(t, id, next); err != nil {
		return fmt.Errorf("memory: update %s: %w", name, err)
	}
	t.rows[id] = next
	return nil
}

func assign(t *table, row Row, fields []storage.Field) error {
	for _, f := range fields {
		if _, ok := t.def.Column(f.Name); !ok {
			return fmt.Errorf("no such column: %s", f.Name)
		}
		row[f.Name] = normalize(f.Value)
	}
	return nil
}

// checkRow enforces NOT NULL and the natural key against every other row.
func checkRow(t *table, self int64, row Row) error {
	for _, c := range t.def.Columns {
		if c.NotNull && row[c.Name] == nil {
			return fmt.Errorf("NOT NULL constraint failed: %s.%s", t.def.Name, c.Name)
		}
	}
	if len(t.def.Unique) == 0 {
		return nil
	}
	key := make([]storage.Field, len(t.def.Unique))
	for i, c := range t.def.Unique {
		key[i] = storage.F(c, row[c])
	}
	for id, other := range t.rows {
		if id != self && matches(other, key) {
			return fmt.Errorf("UNIQUE constraint failed: %s %v", t.def.Name, t.def.Unique)
		}
	}
	return nil
}

func matches(row Row, key []storage.Field) bool {
	for _, f := range key {
		if row[f.Name] != normalize(f.Value) {
			return false
		}
	}
	return true
}

// normalize maps values onto the types a SQL driver would read back, so
// int and int64 keys compare equal.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

// Package storage defines the persistence boundary of the loaders and a
// registry of backends.
//
// Backends register a Factory under a kind in their init functions; callers
// import rosteretl/internal/storage/all and open a Repository with New.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"rosteretl/internal/schema"
)

// Field is a column name and the value written to or matched against it.
// A nil Value matches NULL.
type Field struct {
	Name  string
	Value any
}

// F is shorthand for building a Field.
func F(name string, value any) Field { return Field{Name: name, Value: value} }

// Store reads and writes rows addressed by table name.
type Store interface {
	// FindID returns the id of a row whose columns equal key.
	FindID(ctx context.Context, table string, key []Field) (id int64, found bool, err error)
	// Insert adds a row and returns its id.
	Insert(ctx context.Context, table string, fields []Field) (int64, error)
	// Update sets fields on the row with the given id.
	Update(ctx context.Context, table string, id int64, fields []Field) error
}

// Repository is an open connection to a backend.
type Repository interface {
	Store
	// InTx runs fn against a Store bound to one transaction, committing when
	// fn returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error
	// EnsureSchema creates any of tables that do not exist yet.
	EnsureSchema(ctx context.Context, tables []schema.Table) error
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// ErrUnknownKind is returned by New when no backend is registered for a kind.
var ErrUnknownKind = errors.New("unknown storage kind")

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind, replacing any previous
// registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownKind, cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// GetOrCreate returns the id of the row matching key, inserting key plus
// extra when there is none. created reports whether a row was inserted.
//
// The lookup and the insert are separate statements. Two writers resolving
// the same key at once can both miss and the second insert then fails on the
// table's unique constraint; loaders run as a single writer.
func GetOrCreate(ctx context.Context, s Store, table string, key, extra []Field) (id int64, created bool, err error) {
	id, found, err := s.FindID(ctx, table, key)
	if err != nil {
		return 0, false, fmt.Errorf("find %s: %w", table, err)
	}
	if found {
		return id, false, nil
	}
	fields := make([]Field, 0, len(key)+len(extra))
	fields = append(fields, key...)
	fields = append(fields, extra...)
	id, err = s.Insert(ctx, table, fields)
	if err != nil {
		return 0, false, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, true, nil
}

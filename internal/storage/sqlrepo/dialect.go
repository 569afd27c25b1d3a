// Package sqlrepo implements storage.Repository over database/sql with sqlx.
// Backends differ only in their Dialect: identifier quoting, bind variables,
// column types and how an inserted row's id is returned.
package sqlrepo

import (
	"fmt"
	"strings"

	"rosteretl/internal/schema"
)

// IDStyle is how a backend reports the id of an inserted row.
type IDStyle int

const (
	// LastInsertID reads sql.Result.LastInsertId.
	LastInsertID IDStyle = iota
	// Returning appends RETURNING id to the insert.
	Returning
	// Output adds OUTPUT INSERTED.id before VALUES.
	Output
)

// Dialect holds the SQL differences between backends.
type Dialect struct {
	Name string
	// BindType is a sqlx bind type such as sqlx.QUESTION or sqlx.DOLLAR.
	BindType int
	Quote    func(string) string
	// IDColumn is the type and key clause of the surrogate id column.
	IDColumn string
	Types    map[schema.ColumnType]string
	IDStyle  IDStyle
	// Guard returns a prefix that skips CREATE TABLE when the table exists.
	// When nil, CREATE TABLE IF NOT EXISTS is used.
	Guard func(table string) string
}

// QuoteDouble quotes an identifier with double quotes.
func QuoteDouble(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteBracket quotes an identifier with square brackets.
func QuoteBracket(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// QuoteBacktick quotes an identifier with backticks.
func QuoteBacktick(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func (d *Dialect) quoteAll(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Quote(n)
	}
	return strings.Join(out, ", ")
}

// CreateTable renders the DDL for t.
func (d *Dialect) CreateTable(t schema.Table) (string, error) {
	defs := []string{d.Quote("id") + " " + d.IDColumn}
	var fks []string
	for _, c := range t.Columns {
		typ, ok := d.Types[c.Type]
		if !ok {
			return "", fmt.Errorf("%s: no type for column %s.%s", d.Name, t.Name, c.Name)
		}
		def := d.Quote(c.Name) + " " + typ
		if c.NotNull {
			def += " NOT NULL"
		} else {
			def += " NULL"
		}
		defs = append(defs, def)
		if c.References != "" {
			fks = append(fks, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
				d.Quote(c.Name), d.Quote(c.References), d.Quote("id")))
		}
	}
	if len(t.Unique) > 0 {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
			d.Quote("uc__"+t.Name), d.quoteAll(t.Unique)))
	}
	defs = append(defs, fks...)

	body := fmt.Sprintf("%s (\n  %s\n)", d.Quote(t.Name), strings.Join(defs, ",\n  "))
	if d.Guard != nil {
		return d.Guard(t.Name) + "CREATE TABLE " + body, nil
	}
	return "CREATE TABLE IF NOT EXISTS " + body, nil
}

func (d *Dialect) findID(table string, key []Field) (string, []any) {
	conds := make([]string, len(key))
	var args []any
	for i, f := range key {
		if f.Value == nil {
			conds[i] = d.Quote(f.Name) + " IS NULL"
			continue
		}
		conds[i] = d.Quote(f.Name) + " = ?"
		args = append(args, f.Value)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", d.Quote("id"), d.Quote(table), strings.Join(conds, " AND "))
	return q, args
}

func (d *Dialect) insert(table string, fields []Field) (string, []any) {
	names := make([]string, len(fields))
	marks := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		marks[i] = "?"
		args[i] = f.Value
	}
	var q string
	switch d.IDStyle {
	case Output:
		q = fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.%s VALUES (%s)",
			d.Quote(table), d.quoteAll(names), d.Quote("id"), strings.Join(marks, ", "))
	case Returning:
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			d.Quote(table), d.quoteAll(names), strings.Join(marks, ", "), d.Quote("id"))
	default:
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.Quote(table), d.quoteAll(names), strings.Join(marks, ", "))
	}
	return q, args
}

func (d *Dialect) update(table string, id int64, fields []Field) (string, []any) {
	sets := make([]string, len(fields))
	args := make([]any, 0, len(fields)+1)
	for i, f := range fields {
		sets[i] = d.Quote(f.Name) + " = ?"
		args = append(args, f.Value)
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", d.Quote(table), strings.Join(sets, ", "), d.Quote("id"))
	return q, args
}

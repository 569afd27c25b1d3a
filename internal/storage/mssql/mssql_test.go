package mssql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
)

func TestOpenRejectsBadDSN(t *testing.T) {
	t.Parallel()

	if _, err := open(context.Background(), "sqlserver://host?connection+timeout=abc"); err == nil {
		t.Fatal("expected DSN error")
	}
	if _, err := NewRepository(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestFactoryUsesHook(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })

	var got string
	openDB = func(ctx context.Context, dsn string) (*sqlx.DB, error) {
		got = dsn
		return nil, errors.New("unreachable")
	}
	dsn := "sqlserver://sa:pw@localhost?database=etl"
	if _, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: dsn}); err == nil {
		t.Fatal("expected hook error")
	}
	if got != dsn {
		t.Fatalf("hook saw DSN %q", got)
	}
}

func TestDialectDDL(t *testing.T) {
	t.Parallel()

	tbl, _ := schema.Lookup(schema.StudentTable)
	ddl, err := Dialect.CreateTable(tbl)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	for _, want := range []string{
		"IF OBJECT_ID(N'student', N'U') IS NULL CREATE TABLE [student]",
		"[id] BIGINT IDENTITY(1,1) PRIMARY KEY",
		"[student_token] NVARCHAR(450) NOT NULL",
		"CONSTRAINT [uc__student] UNIQUE ([student_token])",
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("DDL missing %q:\n%s", want, ddl)
		}
	}
	if got := sqlx.Rebind(Dialect.BindType, "a = ? AND b = ?"); got != "a = @p1 AND b = @p2" {
		t.Fatalf("rebind = %s", got)
	}
}

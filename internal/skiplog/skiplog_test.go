package skiplog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	return rows
}

// TestNew_CreatesDirFileAndHeader verifies New creates missing parent
// directories and writes the header row even with no entries.
func TestNew_CreatesDirFileAndHeader(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skipped", "roster.csv")
	l, err := New(target)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rows := readAll(t, target)
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], Header) {
		t.Fatalf("rows = %#v, want only the header", rows)
	}
}

// TestAdd_WritesRowsAndCounts checks rows are appended in order, quoted
// where needed, and counted per reason.
func TestAdd_WritesRowsAndCounts(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skipped.csv")
	l, err := New(target)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Add("not a season", "roster.xlsx", "C", "Winter 2016 a. hello?")
	l.Add("excluded question", "roster.xlsx", "F", "Fall 2015 descriptionreading")
	l.Add("not a season", "roster.xlsx", "AA", `Summer 2017 "quoted", with comma`)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rows := readAll(t, target)
	want := [][]string{
		Header,
		{"not a season", "roster.xlsx", "C", "Winter 2016 a. hello?"},
		{"excluded question", "roster.xlsx", "F", "Fall 2015 descriptionreading"},
		{"not a season", "roster.xlsx", "AA", `Summer 2017 "quoted", with comma`},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows mismatch\ngot : %#v\nwant: %#v", rows, want)
	}

	counts := l.Counts()
	if counts["not a season"] != 2 || counts["excluded question"] != 1 {
		t.Fatalf("Counts() = %v", counts)
	}
	if got := l.Reasons(); !reflect.DeepEqual(got, []string{"excluded question", "not a season"}) {
		t.Fatalf("Reasons() = %v", got)
	}
}

func TestNilLogIsNoop(t *testing.T) {
	t.Parallel()

	var l *Log
	l.Add("reason", "src", "A", "x")
	if len(l.Counts()) != 0 {
		t.Fatal("nil log counted an entry")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}

func TestNew_UnwritableDir(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(filepath.Join(blocker, "sub", "skip.csv")); err == nil {
		t.Fatal("New() under a regular file succeeded, want error")
	}
}
